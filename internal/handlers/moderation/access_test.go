package moderation

import (
	"context"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/ogcommunity/ogmodbot/internal/config"
)

func TestIsModeratorRequiresRestrictPrivilege(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cases := []struct {
		name   string
		member api.ChatMember
		want   bool
	}{
		{"creator", api.ChatMember{Status: "creator"}, true},
		{"admin with restrict", api.ChatMember{Status: "administrator", CanRestrictMembers: true}, true},
		{"admin without restrict", api.ChatMember{Status: "administrator"}, false},
		{"plain member", api.ChatMember{Status: "member"}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			checker := NewAccessChecker(&fakeChatAPI{member: tc.member}, config.Config{})
			if got := checker.IsModerator(ctx, -1001, 7); got != tc.want {
				t.Errorf("IsModerator = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsModeratorFailsClosedOnPlatformError(t *testing.T) {
	t.Parallel()

	checker := NewAccessChecker(&fakeChatAPI{memberErr: api.Error{Message: "user not found"}}, config.Config{})
	if checker.IsModerator(context.Background(), -1001, 7) {
		t.Error("a platform failure must not grant moderator rights")
	}
}

func TestIsModeratorTrustsStaticAllowList(t *testing.T) {
	t.Parallel()

	cfg := config.Config{AdminIDs: []int64{7}}
	checker := NewAccessChecker(&fakeChatAPI{member: api.ChatMember{Status: "member"}}, cfg)
	if !checker.IsModerator(context.Background(), -1001, 7) {
		t.Error("allow-listed users are moderators regardless of chat role")
	}
}
