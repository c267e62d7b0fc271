package chat

import "fmt"

// UserRoom is the personal room every socket of a user joins.
func UserRoom(userID int64) string {
	return fmt.Sprintf("user-%d", userID)
}

// ConversationRoom names the room shared by two chat partners. The order of
// the arguments does not matter.
func ConversationRoom(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}
