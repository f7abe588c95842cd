package store_test

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botgpt/botgpt/pkg/models"
	"github.com/botgpt/botgpt/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(models.InitializeTestDB(t))
}

func TestEnsureUser_Idempotent(t *testing.T) {
	st := newTestStore(t)

	first, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)

	second, err := st.EnsureUser("demo@botgpt.ai")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	users, err := st.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestFindUserByEmail_NotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.FindUserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestCreateConversation_Defaults(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)

	conversation, err := st.CreateConversation(user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ModeOpen, conversation.Mode)
	assert.Equal(t, models.DefaultConversationTitle, conversation.Title)
	assert.NotEqual(t, uuid.Nil, conversation.ID)
}

func TestGetConversation_NotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetConversation(uuid.New())
	assert.ErrorIs(t, err, store.ErrConversationNotFound)

	_, err = st.GetConversationWithMessages(uuid.New())
	assert.ErrorIs(t, err, store.ErrConversationNotFound)
}

func TestGetConversationWithMessages_EmptyHistory(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	loaded, err := st.GetConversationWithMessages(conversation.ID)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Messages)
	assert.Empty(t, loaded.Messages)
}

func TestRecentMessages_WindowKeepsLastInOrder(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		role := models.MessageRoleUser
		if i%2 == 1 {
			role = models.MessageRoleAssistant
		}
		_, err := st.CreateMessage(conversation.ID, role, fmt.Sprintf("message %02d", i), 0)
		require.NoError(t, err)
	}

	recent, err := st.RecentMessages(conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)

	// The window keeps the newest 10 in chronological order
	for i, msg := range recent {
		assert.Equal(t, fmt.Sprintf("message %02d", i+4), msg.Content)
	}

	full, err := st.Messages(conversation.ID)
	require.NoError(t, err)
	assert.Len(t, full, 14)
}

func TestRecentMessages_ShortHistoryReturnedWhole(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	_, err = st.CreateMessage(conversation.ID, models.MessageRoleUser, "hello", 0)
	require.NoError(t, err)
	_, err = st.CreateMessage(conversation.ID, models.MessageRoleAssistant, "hi there", 0)
	require.NoError(t, err)

	recent, err := st.RecentMessages(conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "hello", recent[0].Content)
	assert.Equal(t, "hi there", recent[1].Content)
}

func TestCreateMessage_TouchesConversation(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	message, err := st.CreateMessage(conversation.ID, models.MessageRoleUser, "hello", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, message.TokensUsed)

	reloaded, err := st.GetConversation(conversation.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.UpdatedAt.Before(message.CreatedAt))
}

func TestListConversations_MostRecentlyUpdatedFirst(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)

	older, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)
	newer, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	// A new message moves the older conversation to the front
	_, err = st.CreateMessage(older.ID, models.MessageRoleUser, "bump", 0)
	require.NoError(t, err)

	conversations, err := st.ListConversations(user.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, older.ID, conversations[0].ID)
	assert.Equal(t, newer.ID, conversations[1].ID)
	assert.Len(t, conversations[0].Messages, 1)
	assert.NotNil(t, conversations[1].Messages)
}

func TestDeleteConversation_CascadesMessages(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)
	_, err = st.CreateMessage(conversation.ID, models.MessageRoleUser, "hello", 0)
	require.NoError(t, err)

	require.NoError(t, st.DeleteConversation(conversation.ID))

	_, err = st.GetConversation(conversation.ID)
	assert.ErrorIs(t, err, store.ErrConversationNotFound)

	count, err := st.CountMessages(conversation.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, st.DeleteConversation(conversation.ID), store.ErrConversationNotFound)
}

func TestDeleteUser_CascadesConversationsAndMessages(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)
	_, err = st.CreateMessage(conversation.ID, models.MessageRoleUser, "hello", 0)
	require.NoError(t, err)
	_, err = st.CreateMessage(conversation.ID, models.MessageRoleAssistant, "hi", 0)
	require.NoError(t, err)

	require.NoError(t, st.DeleteUser(user.ID))

	_, err = st.FindUserByID(user.ID)
	assert.ErrorIs(t, err, store.ErrUserNotFound)

	_, err = st.GetConversation(conversation.ID)
	assert.ErrorIs(t, err, store.ErrConversationNotFound)

	count, err := st.CountMessages(conversation.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, st.DeleteUser(user.ID), store.ErrUserNotFound)
}

func TestUpdateConversationTitle(t *testing.T) {
	st := newTestStore(t)

	user, err := st.CreateUser("demo@botgpt.ai")
	require.NoError(t, err)
	conversation, err := st.CreateConversation(user.ID, models.ModeOpen)
	require.NoError(t, err)

	require.NoError(t, st.UpdateConversationTitle(conversation.ID, "Weather questions"))

	reloaded, err := st.GetConversation(conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weather questions", reloaded.Title)
}
