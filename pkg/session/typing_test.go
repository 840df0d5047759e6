package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsmithyeah/flock-sub002/pkg/models"
)

// emitRecorder captures debouncer transitions in order.
type emitRecorder struct {
	mu    sync.Mutex
	emits []bool
}

func (r *emitRecorder) emit(typing bool) {
	r.mu.Lock()
	r.emits = append(r.emits, typing)
	r.mu.Unlock()
}

func (r *emitRecorder) log() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.emits...)
}

func TestDebouncerOneWritePerCycle(t *testing.T) {
	rec := &emitRecorder{}
	d := newDebouncer(40*time.Millisecond, rec.emit)
	defer d.stop()

	// a burst of keystrokes is one cycle
	d.onTextChanged("h")
	d.onTextChanged("he")
	d.onTextChanged("hel")
	d.onTextChanged("hell")
	d.onTextChanged("hello")

	require.Eventually(t, func() bool {
		return len(rec.log()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []bool{true, false}, rec.log())
}

func TestDebouncerClearedOnSend(t *testing.T) {
	rec := &emitRecorder{}
	d := newDebouncer(time.Minute, rec.emit)
	defer d.stop()

	d.onTextChanged("draft")
	d.onSend()
	require.Equal(t, []bool{true, false}, rec.log())

	// no trailing idle emit after the send already cleared
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, []bool{true, false}, rec.log())
}

func TestDebouncerClearedOnEmptyInput(t *testing.T) {
	rec := &emitRecorder{}
	d := newDebouncer(time.Minute, rec.emit)
	defer d.stop()

	d.onTextChanged("x")
	d.onTextChanged("")
	require.Equal(t, []bool{true, false}, rec.log())

	// empty input while already idle emits nothing
	d.onTextChanged("")
	require.Equal(t, []bool{true, false}, rec.log())
}

func TestDebouncerNewCycleAfterIdle(t *testing.T) {
	rec := &emitRecorder{}
	d := newDebouncer(30*time.Millisecond, rec.emit)
	defer d.stop()

	d.onTextChanged("first")
	require.Eventually(t, func() bool {
		return len(rec.log()) == 2
	}, time.Second, 5*time.Millisecond)

	d.onTextChanged("second")
	require.Eventually(t, func() bool {
		return len(rec.log()) == 4
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []bool{true, false, true, false}, rec.log())
}

func TestDebouncerStopSuppressesEmits(t *testing.T) {
	rec := &emitRecorder{}
	d := newDebouncer(20*time.Millisecond, rec.emit)

	d.onTextChanged("x")
	d.stop()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, []bool{true}, rec.log())

	d.onTextChanged("y")
	require.Equal(t, []bool{true}, rec.log())
}

func TestSessionTypingWrites(t *testing.T) {
	fb := &fakeBackend{}
	fs := &fakeSender{}
	s, _ := newTestSession(t, fb, fs)
	_, err := s.OpenConversation("alice_bob", KindDirect, []string{"alice", "bob"})
	require.NoError(t, err)

	s.OnTextChanged("alice_bob", "h")
	s.OnTextChanged("alice_bob", "hi")
	_, err = s.Send("alice_bob", models.Message{Text: "hi"})
	require.NoError(t, err)

	// exactly one true on first keystroke, one false on send
	require.Eventually(t, func() bool {
		return len(fb.typingLog()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []bool{true, false}, fb.typingLog())
}
