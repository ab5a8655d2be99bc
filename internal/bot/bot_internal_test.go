package bot

import (
	"testing"

	"aidigest/internal/domain"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"
)

func TestCommandOf(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "/start"},
		{"  /now  ", "/now"},
		{"/now@ai_digest_bot", "/now"},
		{"/Settings extra args", "/settings"},
		{"hello", ""},
		{"", ""},
	}

	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			require.Equal(t, test.want, commandOf(test.text))
		})
	}
}

func TestIsCommandMatchesOnlyMessages(t *testing.T) {
	match := isCommand(commandNow)

	require.True(t, match(&models.Update{Message: &models.Message{Text: "/now"}}))
	require.False(t, match(&models.Update{Message: &models.Message{Text: "/nowhere"}}))
	require.False(t, match(&models.Update{CallbackQuery: &models.CallbackQuery{Data: "/now"}}))
}

func TestCadenceKeyboardRoundTrip(t *testing.T) {
	kb := cadenceKeyboard()
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], len(domain.Cadences()))

	for i, button := range kb.InlineKeyboard[0] {
		cadence, ok := parseCadenceCallback(button.CallbackData)
		require.True(t, ok, button.CallbackData)
		require.Equal(t, domain.Cadences()[i], cadence)
	}

	_, ok := parseCadenceCallback("cadence_2h")
	require.False(t, ok)

	_, ok = parseCadenceCallback("menu")
	require.False(t, ok)
}

func TestUserAllowed(t *testing.T) {
	open := &Bot{}
	require.True(t, open.userAllowed(1))

	restricted := &Bot{allowedUsers: []int64{10, 20}}
	require.True(t, restricted.userAllowed(20))
	require.False(t, restricted.userAllowed(30))
}

func TestUpdateSender(t *testing.T) {
	userID, chatID := updateSender(&models.Update{Message: &models.Message{
		From: &models.User{ID: 7},
		Chat: models.Chat{ID: -100},
	}})
	require.EqualValues(t, 7, userID)
	require.EqualValues(t, -100, chatID)

	userID, chatID = updateSender(&models.Update{CallbackQuery: &models.CallbackQuery{
		From: models.User{ID: 8},
		Message: models.MaybeInaccessibleMessage{
			Message: &models.Message{ID: 3, Chat: models.Chat{ID: 8}},
		},
	}})
	require.EqualValues(t, 8, userID)
	require.EqualValues(t, 8, chatID)

	userID, chatID = updateSender(&models.Update{})
	require.Zero(t, userID)
	require.Zero(t, chatID)
}

func TestCadenceConfirmation(t *testing.T) {
	require.Contains(t, cadenceConfirmation(true, domain.CadenceFast), "Subscribed")
	require.Contains(t, cadenceConfirmation(true, domain.CadenceFast), "every 10m")
	require.Contains(t, cadenceConfirmation(false, domain.CadenceDaily), "every 1d")
}
