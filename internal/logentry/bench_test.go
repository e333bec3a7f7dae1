package logentry

import (
	"testing"

	"github.com/sajjad-MoBe/txlog/internal/channel"
	"github.com/sajjad-MoBe/txlog/internal/command/commandtest"
)

// encodeTransactions writes n transactions with one 1KB command each.
func encodeTransactions(b *testing.B, n int) []byte {
	ch := channel.NewInMemoryChannel()
	w := NewWriter(ch)
	payload := make([]byte, 1024)
	for i := 0; i < n; i++ {
		if err := w.WriteStartEntry(1, 2, int64(i), int64(i), nil); err != nil {
			b.Fatal(err)
		}
		if err := w.WriteCommandEntry(commandtest.NewTestCommand(payload)); err != nil {
			b.Fatal(err)
		}
		if err := w.WriteCommitEntry(int64(i+1), int64(i)); err != nil {
			b.Fatal(err)
		}
	}
	return ch.Bytes()
}

func BenchmarkWriteThroughput(b *testing.B) {
	payload := make([]byte, 1024)
	ch := channel.NewInMemoryChannel()
	w := NewWriter(ch)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.WriteCommandEntry(commandtest.NewTestCommand(payload)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadThroughput(b *testing.B) {
	data := encodeTransactions(b, 1000)
	r := newTestReader()

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ch := channel.NewInMemoryChannelFrom(0, data)
		for {
			e, err := r.ReadLogEntry(ch)
			if err != nil {
				b.Fatal(err)
			}
			if e == nil {
				break
			}
		}
	}
}
