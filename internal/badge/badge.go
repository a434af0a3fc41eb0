// Package badge maps classified reply intents onto appointment workflow
// state: the status an appointment moves to, the operator card it appears on,
// the badge flag demanding operator action and the automatic reply sent back
// to the patient.
package badge

// Color signals badge urgency to operators.
type Color string

// Badge colors. Red badges demand an operator action; green badges record
// that the action was taken.
const (
	ColorRed   Color = "red"
	ColorGreen Color = "green"
)

// Badge is an operator-facing workflow flag attached to an appointment.
type Badge struct {
	Label  string
	Action string
	Color  Color
}

// The fixed badge vocabulary.
var (
	// Desmarcar asks the operator to cancel the appointment in the
	// scheduling system after the patient said they cannot attend.
	Desmarcar = Badge{Label: "Desmarcar", Color: ColorRed, Action: ActionDesmarcarAghuse}
	// Desmarcada records that the operator completed the cancellation.
	Desmarcada = Badge{Label: "Desmarcada", Color: ColorGreen}
	// Reagendar asks the operator to book a new date for the patient.
	Reagendar = Badge{Label: "Reagendar", Color: ColorRed, Action: ActionReagendarAghuse}
	// Reagendada records that the new appointment was booked.
	Reagendada = Badge{Label: "Reagendada", Color: ColorGreen}
)

// Operator actions referenced by badges.
const (
	ActionDesmarcarAghuse = "desmarcar_aghuse"
	ActionReagendarAghuse = "reagendar_aghuse"
)

// validTransitions lists the allowed badge state changes: red to its matching
// green, nothing else.
var validTransitions = map[string][]string{
	Desmarcar.Label: {Desmarcada.Label},
	Reagendar.Label: {Reagendada.Label},
}

// CanTransition reports whether a badge may change from current to next.
// A nil current badge accepts anything, since any badge may be created fresh.
func CanTransition(current *Badge, next Badge) bool {
	if current == nil {
		return true
	}
	for _, target := range validTransitions[current.Label] {
		if target == next.Label {
			return true
		}
	}
	return false
}
