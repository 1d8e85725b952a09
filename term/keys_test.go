package term

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Key
	}{
		{"rune", "p", []Key{{Code: KeyRune, Rune: 'p'}}},
		{"space", " ", []Key{{Code: KeyRune, Rune: ' '}}},
		{"lone escape", "\x1b", []Key{{Code: KeyEsc}}},
		{"right arrow", "\x1b[C", []Key{{Code: KeyRight}}},
		{"left arrow", "\x1b[D", []Key{{Code: KeyLeft}}},
		{"application mode arrow", "\x1bOA", []Key{{Code: KeyUp}}},
		{"unknown sequence", "\x1b[Z", []Key{{Code: KeyUnknown}}},
		{"enter", "\r", []Key{{Code: KeyEnter}}},
		{"ctrl-c", "\x03", []Key{{Code: KeyCtrlC}}},
		{"several keys in one read", "a\x1b[Dq", []Key{
			{Code: KeyRune, Rune: 'a'},
			{Code: KeyLeft},
			{Code: KeyRune, Rune: 'q'},
		}},
		{"utf-8", "é", []Key{{Code: KeyRune, Rune: 'é'}}},
		{"control byte", "\x01", []Key{{Code: KeyUnknown}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode([]byte(tt.in)))
		})
	}
}

func TestKey_IsRune(t *testing.T) {
	k := Key{Code: KeyRune, Rune: 'q'}
	assert.True(t, k.IsRune('p', 'q'))
	assert.False(t, k.IsRune('p'))
	assert.False(t, Key{Code: KeyEsc}.IsRune('q'))
}

func TestKeyboard_Read(t *testing.T) {
	r, w := io.Pipe()
	k := NewKeyboard(r)

	go func() {
		_, _ = w.Write([]byte("p\x1b[C"))
		_ = w.Close()
	}()

	ctx := context.Background()
	key, err := k.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, Key{Code: KeyRune, Rune: 'p'}, key)

	key, err = k.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, Key{Code: KeyRight}, key)

	_, err = k.Read(ctx)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestKeyboard_ReadHonoursContext(t *testing.T) {
	r, _ := io.Pipe()
	k := NewKeyboard(r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := k.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyboard_Poll(t *testing.T) {
	r, w := io.Pipe()
	k := NewKeyboard(r)

	_, ok, err := k.Poll()
	require.NoError(t, err)
	assert.False(t, ok)

	go func() { _, _ = w.Write([]byte("q")) }()

	require.Eventually(t, func() bool {
		key, ok, err := k.Poll()
		return err == nil && ok && key.IsRune('q')
	}, time.Second, 5*time.Millisecond)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("device gone")
}

func TestKeyboard_ReadError(t *testing.T) {
	k := NewKeyboard(errReader{})

	_, err := k.Read(context.Background())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.NoError(t, k.Close())
}

func TestSplitEscape(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		complete string
		tail     string
	}{
		{"no escape", "pq", "pq", ""},
		{"complete arrow", "p\x1b[C", "p\x1b[C", ""},
		{"trailing esc", "p\x1b", "p", "\x1b"},
		{"trailing csi", "p\x1b[", "p", "\x1b["},
		{"trailing ss3", "\x1bO", "", "\x1bO"},
		{"bracket without esc", "p[", "p[", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			complete, tail := splitEscape([]byte(tt.in))
			assert.Equal(t, tt.complete, string(complete))
			assert.Equal(t, tt.tail, string(tail))
		})
	}
}

func TestKeyboard_ArrowSplitAcrossReads(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{"after esc", []string{"\x1b", "[C"}},
		{"after bracket", []string{"\x1b[", "C"}},
		{"three reads", []string{"\x1b", "[", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, w := io.Pipe()
			k := NewKeyboard(r)

			go func() {
				for _, p := range tt.parts {
					_, _ = w.Write([]byte(p))
				}
				_ = w.Close()
			}()

			ctx := context.Background()
			key, err := k.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, Key{Code: KeyRight}, key)

			_, err = k.Read(ctx)
			assert.True(t, errors.Is(err, io.EOF))
		})
	}
}

func TestKeyboard_LoneEscape(t *testing.T) {
	r, w := io.Pipe()
	k := NewKeyboard(r)
	start := time.Now()
	go func() { _, _ = w.Write([]byte("\x1b")) }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	key, err := k.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, Key{Code: KeyEsc}, key)
	assert.GreaterOrEqual(t, time.Since(start), escapeWait)
}
