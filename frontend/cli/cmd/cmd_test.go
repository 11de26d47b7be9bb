package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/furisto/toolgate/backend/memory"
	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/shared/config"
	"github.com/furisto/toolgate/shared/keyring"
	"github.com/google/go-cmp/cmp"
	"github.com/invopop/jsonschema"
	"github.com/posthog/posthog-go"
	"github.com/spf13/afero"
)

const testConfigPath = "/home/test/.config/toolgate/toolgate.yaml"

type MockRenderer struct {
	DisplayedObjects any
	DisplayFormat    OutputFormat
}

func (m *MockRenderer) Render(resources any, options *RenderOptions) error {
	m.DisplayedObjects = resources
	m.DisplayFormat = options.Format
	return nil
}

type testUserInfo struct{}

func (testUserInfo) HomeDir() (string, error)   { return "/home/test", nil }
func (testUserInfo) ConfigDir() (string, error) { return "/home/test/.config/toolgate", nil }
func (testUserInfo) DataDir() (string, error)   { return "/home/test/.local/share/toolgate", nil }
func (testUserInfo) LogDir() (string, error)    { return "/home/test/.local/state/toolgate", nil }

type memoryKeyring struct {
	secrets map[string]string
}

func (k *memoryKeyring) Get(key string) (string, error) {
	secret, ok := k.secrets[key]
	if !ok {
		return "", &keyring.ErrSecretNotFound{Key: key}
	}
	return secret, nil
}

func (k *memoryKeyring) Set(key string, value string) error {
	k.secrets[key] = value
	return nil
}

func (k *memoryKeyring) Delete(key string) error {
	if _, ok := k.secrets[key]; !ok {
		return &keyring.ErrSecretNotFound{Key: key}
	}
	delete(k.secrets, key)
	return nil
}

type recordingAnalytics struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingAnalytics) Enqueue(msg posthog.Message) error {
	if capture, ok := msg.(posthog.Capture); ok {
		r.mu.Lock()
		r.events = append(r.events, capture.Event)
		r.mu.Unlock()
	}
	return nil
}

func (r *recordingAnalytics) Close() error { return nil }

func (r *recordingAnalytics) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events
}

// scriptedChatClient asks one question per session and summarizes every
// prompt that starts with summaryMarker.
type scriptedChatClient struct {
	question string
	summary  string
	answer   string
	err      error
}

const summaryMarker = "SUMMARIZE"

func (c *scriptedChatClient) Chat(_ context.Context, messages []model.ChatMessage, _ float64) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if strings.HasPrefix(messages[len(messages)-1].Content, summaryMarker) {
		return c.summary, nil
	}
	return c.question, nil
}

func (c *scriptedChatClient) ChatWithSchema(context.Context, []model.ChatMessage, *jsonschema.Schema, float64) (json.RawMessage, error) {
	return json.RawMessage(c.answer), nil
}

type testEnv struct {
	fs        *afero.Afero
	store     *memory.EphemeralStore
	keyring   *memoryKeyring
	analytics *recordingAnalytics
	stderr    *syncBuffer
}

// syncBuffer is written by the progress printer and the logger at the same
// time.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type TestScenario struct {
	Name            string
	Command         []string
	Stdin           string
	SetupFileSystem func(fs *afero.Afero)
	SetupStore      func(t *testing.T, store *memory.EphemeralStore)
	Env             map[string]string
	Secrets         map[string]string
	ChatClient      model.ChatClient
	Expected        TestExpectation
	Verify          func(t *testing.T, env *testEnv)
}

type TestExpectation struct {
	Stdout           string
	Error            string
	DisplayedObjects any
	DisplayFormat    OutputFormat
	AnalyticsEvents  []string
}

type TestSetup struct {
	CmpOptions []cmp.Option
}

func (s *TestSetup) RunTests(t *testing.T, scenarios []TestScenario) {
	if len(scenarios) == 0 {
		t.Fatalf("no scenarios provided")
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			env := &testEnv{
				fs:        &afero.Afero{Fs: afero.NewMemMapFs()},
				store:     memory.NewEphemeralStore(),
				keyring:   &memoryKeyring{secrets: map[string]string{}},
				analytics: &recordingAnalytics{},
				stderr:    &syncBuffer{},
			}
			for key, value := range scenario.Secrets {
				env.keyring.secrets[key] = value
			}
			if scenario.SetupFileSystem != nil {
				scenario.SetupFileSystem(env.fs)
			}
			if scenario.SetupStore != nil {
				scenario.SetupStore(t, env.store)
			}

			lookupEnv := func(name string) (string, bool) {
				value, ok := scenario.Env[name]
				return value, ok
			}
			manager := config.NewManagerWithKeyring(env.fs, testUserInfo{}, env.keyring, lookupEnv)

			testCmd := NewRootCmd()
			testCmd.SetIn(strings.NewReader(scenario.Stdin))
			var stdout bytes.Buffer
			testCmd.SetOut(&stdout)
			testCmd.SetErr(env.stderr)

			mockRenderer := &MockRenderer{}
			ctx := context.Background()
			ctx = context.WithValue(ctx, ContextKeyFileSystem, env.fs)
			ctx = context.WithValue(ctx, ContextKeyUserInfo, testUserInfo{})
			ctx = context.WithValue(ctx, ContextKeyConfigManager, manager)
			ctx = context.WithValue(ctx, ContextKeyOutputRenderer, OutputRenderer(mockRenderer))
			ctx = context.WithValue(ctx, ContextKeyStore, RecordStore(env.store))
			ctx = context.WithValue(ctx, ContextKeyAnalytics, env.analytics)
			ctx = context.WithValue(ctx, ContextKeyDisableFileLogs, true)
			if scenario.ChatClient != nil {
				ctx = context.WithValue(ctx, ContextKeyChatClient, scenario.ChatClient)
			}

			testCmd.SetArgs(scenario.Command)

			var actual TestExpectation
			if err := testCmd.ExecuteContext(ctx); err != nil {
				actual.Error = err.Error()
			}
			actual.DisplayedObjects = mockRenderer.DisplayedObjects
			actual.DisplayFormat = mockRenderer.DisplayFormat
			actual.Stdout = stdout.String()
			actual.AnalyticsEvents = env.analytics.Events()

			expected := scenario.Expected
			if expected.Error != "" && strings.Contains(actual.Error, expected.Error) {
				actual.Error = expected.Error
			}

			if diff := cmp.Diff(expected, actual, s.CmpOptions...); diff != "" {
				t.Errorf("%s() mismatch (-want +got):\n%s", scenario.Name, diff)
			}
			if scenario.Verify != nil {
				scenario.Verify(t, env)
			}
		})
	}
}

// jsonEqual compares raw JSON by value.
var jsonEqual = cmp.Comparer(func(a, b json.RawMessage) bool {
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return cmp.Equal(left, right)
})

func writeFile(t *testing.T, fs *afero.Afero, path string, content string) {
	t.Helper()
	if err := fs.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

var errTransport = errors.New("connection reset by peer")
