package permissions

import api "github.com/OvyFlash/telegram-bot-api"

// IsAdministrator reports whether the member holds an administrator or
// owner role in the chat.
func IsAdministrator(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func CanRestrict(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	if member.IsCreator() {
		return true
	}
	return member.IsAdministrator() && member.CanRestrictMembers
}
