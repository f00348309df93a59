package telegram

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/graphbot/internal/bot/domain"
	"github.com/aussiebroadwan/graphbot/internal/bot/service"
	"github.com/aussiebroadwan/graphbot/internal/bot/store"
	"github.com/aussiebroadwan/graphbot/internal/bot/store/drivers/sqlite"
	"github.com/aussiebroadwan/graphbot/pkg/graphsdk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu           sync.Mutex
	messages     []string
	forceReplies []string
	keyboards    [][][]Button
	typing       int
}

func (s *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

func (s *fakeSender) SendTyping(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing++
	return nil
}

func (s *fakeSender) SendForceReply(ctx context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceReplies = append(s.forceReplies, text)
	return nil
}

func (s *fakeSender) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]Button) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyboards = append(s.keyboards, rows)
	return nil
}

func (s *fakeSender) lastMessage(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages)
	return s.messages[len(s.messages)-1]
}

type stubDirectory struct{}

func (stubDirectory) ResolveTenant(email string) (string, error) {
	return email[strings.LastIndex(email, "@")+1:], nil
}

func (stubDirectory) ValidateApplication(ctx context.Context, tenant, clientID, clientSecret string) error {
	return nil
}

func (stubDirectory) ValidateToken(ctx context.Context, accessToken string) (graphsdk.Identity, error) {
	return graphsdk.Identity{}, nil
}

func newTestRouter(t *testing.T) (*Router, *fakeSender, store.Store) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "bot.db") + "?_busy_timeout=5000"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	bind := &service.BindingService{
		Store:        st,
		Directory:    stubDirectory{},
		Scope:        "user.read",
		RedirectURL:  "https://localhost/callback",
		AppPortalURL: "https://portal.azure.com/appdelete",
	}
	secrets, err := service.NewStaticSecretProvider("hunter2")
	require.NoError(t, err)
	perms := &service.PermissionService{Store: st, Secrets: secrets}

	sender := &fakeSender{}
	return NewRouter(bind, perms, st, sender, nil), sender, st
}

func sendText(r *Router, chatID int64, text string) {
	r.HandleUpdate(context.Background(), Update{Message: &Message{
		ChatID: chatID, UserID: chatID, Username: "u", Text: text,
	}})
}

func sendReply(r *Router, chatID int64, text string) {
	r.HandleUpdate(context.Background(), Update{Message: &Message{
		ChatID: chatID, UserID: chatID, Username: "u", Text: text, IsReply: true,
	}})
}

func sendCallback(r *Router, chatID int64, data string) {
	r.HandleUpdate(context.Background(), Update{Callback: &CallbackQuery{
		ID: "cb", ChatID: chatID, UserID: chatID, Username: "u", Data: data,
	}})
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendText(r, 1, "/frobnicate")
	require.Equal(t, msgUnknownCommand, sender.lastMessage(t))
	require.Equal(t, 1, sender.typing, "typing indicator precedes dispatch")
}

func TestHelpHidesAdminEntries(t *testing.T) {
	t.Parallel()
	r, sender, st := newTestRouter(t)
	ctx := context.Background()

	sendText(r, 1, "/help")
	require.NotContains(t, sender.lastMessage(t), "/addadminpermission")

	require.NoError(t, st.Users().SetAdmin(ctx, 1, "u", true))
	sendText(r, 1, "/help")
	require.Contains(t, sender.lastMessage(t), "/addadminpermission")
}

func TestCallbackWithoutPendingAction(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendCallback(r, 1, uuid.NewString())
	require.Equal(t, msgStaleContinuation, sender.lastMessage(t))
}

func TestReplyWithoutPendingAction(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendReply(r, 1, "some answer")
	require.Equal(t, msgStaleContinuation, sender.lastMessage(t))
}

func TestPlainTextWithoutPendingAction(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendText(r, 1, "hello there")
	require.Equal(t, msgUnknownCommand, sender.lastMessage(t))
}

func TestReplyStageWithoutHandler(t *testing.T) {
	t.Parallel()
	r, sender, st := newTestRouter(t)

	// /deleteapp has no reply stage; a pending record pointing at it must hit
	// the explicit unsupported branch when a reply arrives.
	require.NoError(t, st.PendingActions().UpsertPendingAction(context.Background(), domain.PendingAction{
		ChatID:    1,
		Command:   "/deleteapp",
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	sendReply(r, 1, "whatever")
	require.Equal(t, msgStaleContinuation, sender.lastMessage(t))
}

func TestFreshCommandSupersedesPending(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendText(r, 1, "/regapp")
	require.NotEmpty(t, sender.forceReplies)

	sendText(r, 1, "/help")

	// The /regapp continuation is gone; plain text is no longer an answer.
	sendText(r, 1, "some stray text")
	require.Equal(t, msgUnknownCommand, sender.lastMessage(t))
}

func TestRegAppFlow(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	clientID := uuid.NewString()

	sendText(r, 1, "/regapp")
	require.Len(t, sender.forceReplies, 1)
	require.Contains(t, sender.forceReplies[0], "email clientId clientSecret appName")

	sendReply(r, 1, "a@b.com "+clientID+" s3cret My App")
	require.Contains(t, sender.lastMessage(t), "Registered")
	require.Contains(t, sender.lastMessage(t), clientID)

	apps, err := r.Bind.ListApps(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, "My App", apps[0].Name)

	// Continuation is consumed.
	sendText(r, 1, "stray")
	require.Equal(t, msgUnknownCommand, sender.lastMessage(t))
}

func TestRegAppReplyTooFewFieldsKeepsPending(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	clientID := uuid.NewString()

	sendText(r, 1, "/regapp")
	sendReply(r, 1, "a@b.com only-two")
	require.Contains(t, sender.lastMessage(t), "four fields")

	// A corrected reply still lands on the same continuation.
	sendReply(r, 1, "a@b.com "+clientID+" s3cret App")
	require.Contains(t, sender.lastMessage(t), "Registered")
}

func TestRegAppReplyInvalidClientID(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendText(r, 1, "/regapp")
	sendReply(r, 1, "a@b.com not-a-guid s3cret App")
	require.Contains(t, sender.lastMessage(t), "not a valid GUID")
}

func TestBindAuthFlow(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	ctx := context.Background()
	clientID := uuid.NewString()

	require.NoError(t, r.Bind.RegisterApp(ctx, 1, "u", "test@onmicrosoft.com", clientID, "s", "App1"))

	sendText(r, 1, "/bindauth")
	require.Len(t, sender.keyboards, 1)
	require.Equal(t, clientID, sender.keyboards[0][0][0].Data)

	sendCallback(r, 1, clientID)
	require.Contains(t, sender.lastMessage(t), "login.microsoftonline.com/onmicrosoft.com/oauth2/v2.0/authorize")
	require.Len(t, sender.forceReplies, 1)

	sendReply(r, 1, "work\n{\"access_token\":\"at\",\"expires_in\":3600}")
	require.Contains(t, sender.lastMessage(t), `bound as "work"`)

	count, err := r.Bind.AuthCount(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBindAuthReplyBeforeCallback(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	ctx := context.Background()
	clientID := uuid.NewString()

	require.NoError(t, r.Bind.RegisterApp(ctx, 1, "u", "a@b.com", clientID, "s", "App1"))

	sendText(r, 1, "/bindauth")
	sendReply(r, 1, "work\n{\"access_token\":\"at\"}")
	require.Contains(t, sender.lastMessage(t), "Pick an application")
}

func TestDeleteAppFlow(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	ctx := context.Background()
	clientID := uuid.NewString()

	require.NoError(t, r.Bind.RegisterApp(ctx, 1, "u", "a@b.com", clientID, "s", "App1"))

	sendText(r, 1, "/deleteapp")
	require.NotEmpty(t, sender.keyboards)

	sendCallback(r, 1, clientID)
	require.Contains(t, sender.lastMessage(t), "https://portal.azure.com/appdelete/"+clientID)

	count, err := r.Bind.AppCount(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestRunAPITaskWithoutBinding(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendText(r, 1, "/runapitask")
	require.Contains(t, sender.lastMessage(t), "No bound token")
}

func TestRunAPITaskInvokesRunner(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	ctx := context.Background()
	clientID := uuid.NewString()

	require.NoError(t, r.Bind.RegisterApp(ctx, 1, "u", "a@b.com", clientID, "s", "App1"))
	require.NoError(t, r.Bind.BindAuth(ctx, 1, clientID, `{"access_token":"at"}`, "work"))

	var gotToken string
	r.Tasks = taskFunc(func(ctx context.Context, userID int64, token string) (bool, string) {
		gotToken = token
		return true, "42 messages"
	})

	sendText(r, 1, "/runapitask")
	require.Equal(t, "at", gotToken)
	require.Contains(t, sender.lastMessage(t), "Task succeeded: 42 messages")
}

type taskFunc func(ctx context.Context, userID int64, token string) (bool, string)

func (f taskFunc) Run(ctx context.Context, userID int64, token string) (bool, string) {
	return f(ctx, userID, token)
}

func TestAdminPermissionFlow(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)
	ctx := context.Background()

	sendText(r, 1, "/addadminpermission")
	require.Len(t, sender.forceReplies, 1)

	sendReply(r, 1, "wrong")
	require.Contains(t, sender.lastMessage(t), "not correct")

	admin, err := r.Perms.IsAdmin(ctx, 1)
	require.NoError(t, err)
	require.False(t, admin)

	sendText(r, 1, "/addadminpermission")
	sendReply(r, 1, "hunter2")
	require.Contains(t, sender.lastMessage(t), "now an administrator")

	admin, err = r.Perms.IsAdmin(ctx, 1)
	require.NoError(t, err)
	require.True(t, admin)

	sendText(r, 1, "/removeadminpermission")
	admin, err = r.Perms.IsAdmin(ctx, 1)
	require.NoError(t, err)
	require.False(t, admin)
}

func TestCommandWithBotNameSuffix(t *testing.T) {
	t.Parallel()
	r, sender, _ := newTestRouter(t)

	sendText(r, 1, "/help@graphbot")
	require.Contains(t, sender.lastMessage(t), "Available commands")
}
