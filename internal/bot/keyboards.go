package bot

import (
	"strings"

	"aidigest/internal/domain"

	"github.com/go-telegram/bot/models"
)

const cadenceCallbackPrefix = "cadence_"

func cadenceKeyboard() *models.InlineKeyboardMarkup {
	var row []models.InlineKeyboardButton

	for _, c := range domain.Cadences() {
		row = append(row, models.InlineKeyboardButton{
			Text:         "⏱ " + c.Short(),
			CallbackData: cadenceCallbackPrefix + c.Short(),
		})
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{row},
	}
}

func parseCadenceCallback(data string) (domain.Cadence, bool) {
	value, ok := strings.CutPrefix(strings.TrimSpace(data), cadenceCallbackPrefix)
	if !ok {
		return "", false
	}

	cadence, err := domain.ParseCadence(value)
	if err != nil {
		return "", false
	}

	return cadence, true
}
