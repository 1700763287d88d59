package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	sync.Mutex
	entries []Entry
	closed  bool
}

func (m *memorySink) Write(_ context.Context, e Entry) error {
	m.Lock()
	defer m.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memorySink) Close() error {
	m.Lock()
	defer m.Unlock()
	m.closed = true
	return nil
}

func (m *memorySink) snapshot() ([]Entry, bool) {
	m.Lock()
	defer m.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out, m.closed
}

func TestRecorder_DrainsAndCloses(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(zerolog.Nop(), 8, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Record(NewEntry(KindRequest, "Alice", json.RawMessage(`{"name":"Alice"}`)))
	rec.Record(NewEntry(KindDelete, "Alice", nil))

	require.Eventually(t, func() bool {
		entries, _ := sink.snapshot()
		return len(entries) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	entries, closed := sink.snapshot()
	require.True(t, closed)
	require.Equal(t, KindRequest, entries[0].Kind)
	require.Equal(t, KindDelete, entries[1].Kind)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(zerolog.Nop(), 1, &memorySink{})
	rec.Record(NewEntry(KindReset, "", nil))
	rec.Record(NewEntry(KindReset, "", nil))
	require.Equal(t, uint64(1), rec.Dropped())
}

func TestRecorder_NoSinks(t *testing.T) {
	var rec *Recorder
	rec.Record(NewEntry(KindReset, "", nil))

	rec = NewRecorder(zerolog.Nop(), 1)
	rec.Record(NewEntry(KindReset, "", nil))
	rec.Record(NewEntry(KindReset, "", nil))
	require.Zero(t, rec.Dropped())
}

func TestSQLite_WriteAndRecent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.sqlite3"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	first := NewEntry(KindRequest, "Alice", json.RawMessage(`{"name":"Alice","slices":3}`))
	second := NewEntry(KindDelete, "Alice", nil)
	second.At = first.At.Add(time.Second)
	require.NoError(t, db.Write(ctx, first))
	require.NoError(t, db.Write(ctx, second))

	entries, err := db.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, second.ID, entries[0].ID)
	require.Nil(t, entries[0].Payload)
	require.Equal(t, first.ID, entries[1].ID)
	require.JSONEq(t, `{"name":"Alice","slices":3}`, string(entries[1].Payload))
	require.True(t, first.At.Equal(entries[1].At))

	entries, err = db.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestKafka_Write(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Entry
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		require.Equal(t, KindRequest, e.Kind)
		require.Equal(t, "Alice", e.Name)
		return nil
	})

	k := NewKafka(producer, "pizza")
	require.NoError(t, k.Write(context.Background(), NewEntry(KindRequest, "Alice", json.RawMessage(`{}`))))
	require.NoError(t, k.Close())
}

func TestKafka_WriteFails(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafka(producer, "pizza")
	require.Error(t, k.Write(context.Background(), NewEntry(KindReset, "", nil)))
	require.NoError(t, k.Close())
}
