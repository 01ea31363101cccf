//go:build !integration

package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator(t *testing.T) {
	// Arrange
	translator, err := newTranslatorFromBytes([]byte("greeting: Привет\nwelcome_user: Привет, %s"))
	require.NoError(t, err)

	t.Run("should translate a simple key", func(t *testing.T) {
		assert.Equal(t, "Привет", translator.T("greeting"))
	})

	t.Run("should return key if not found", func(t *testing.T) {
		assert.Equal(t, "nonexistent_key", translator.T("nonexistent_key"))
		assert.False(t, translator.Has("nonexistent_key"))
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		assert.Equal(t, "Привет, Иван", translator.T("welcome_user", "Иван"))
	})
}

func TestNewTranslator_FromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/ru.yaml": {Data: []byte("k: v")},
	}
	tr, err := NewTranslator(fsys, "ru")
	require.NoError(t, err)
	assert.Equal(t, "v", tr.T("k"))
	assert.Equal(t, "ru", tr.Lang())

	_, err = NewTranslator(fsys, "en")
	assert.Error(t, err)
}

func TestEmbeddedRussianCatalogue(t *testing.T) {
	tr, err := NewTranslator(LocalesFS, "ru")
	require.NoError(t, err)

	for _, key := range []string{
		"welcome", "level_1_description", "level_2_description",
		"invite_channel", "invite_chat", "payment_success", "expiry_reminder",
		"no_active_subscription", "payment_prompt", "payment_error",
	} {
		assert.True(t, tr.Has(key), "missing %s", key)
	}
	assert.Equal(t, "Оплата прошла успешно! Ваша подписка куплена.", tr.T("payment_success"))
	assert.Equal(t, "Ссылка на закрытый канал: https://t.me/+a", tr.T("invite_channel", "https://t.me/+a"))
	assert.Equal(t, "\nСсылка на закрытый чат: https://t.me/+b", tr.T("invite_chat", "https://t.me/+b"))
	assert.Equal(t,
		"Ваша подписка истекает через 2 дня(ей). Продлите подписку, чтобы не потерять доступ к контенту.",
		tr.T("expiry_reminder", 2))
	assert.Equal(t, "1 месяц - 1490 руб", tr.T("duration_1", 1490))
}
