package notifier

import (
	"math/rand"

	"github.com/julianstephens/hydrate/internal/constants"
)

// RandomMessage picks a reminder body.
func RandomMessage() string {
	return constants.ReminderMessages[rand.Intn(len(constants.ReminderMessages))]
}
