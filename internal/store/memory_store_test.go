package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func testRecord(id string, createdAt time.Time) Record {
	return Record{
		ID:         id,
		Algorithm:  "RS256",
		CreatedAt:  createdAt,
		PrivateKey: []byte("private-" + id),
	}
}

func sortedByCreation(records []Record) []Record {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// testKeyStore runs the behavior every KeyStore must have.
func testKeyStore(t *testing.T, newStore func(t *testing.T) KeyStore) {
	t.Helper()

	t.Run("empty store", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)

		records, err := s.Load(context.Background())
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(records).To(BeEmpty())
	})

	t.Run("save and load", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)
		ctx := context.Background()

		base := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
		want := []Record{
			testRecord("a", base),
			testRecord("b", base.Add(time.Hour)),
			testRecord("c", base.Add(2*time.Hour)),
		}
		for _, r := range want {
			g.Expect(s.Save(ctx, r)).To(Succeed())
		}

		records, err := s.Load(ctx)
		g.Expect(err).ToNot(HaveOccurred())
		records = sortedByCreation(records)
		g.Expect(records).To(HaveLen(len(want)))
		for i := range want {
			g.Expect(records[i].ID).To(Equal(want[i].ID))
			g.Expect(records[i].Algorithm).To(Equal(want[i].Algorithm))
			g.Expect(records[i].CreatedAt).To(BeTemporally("~", want[i].CreatedAt, time.Millisecond))
			g.Expect(records[i].PrivateKey).To(Equal(want[i].PrivateKey))
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)
		ctx := context.Background()

		now := time.Now()
		g.Expect(s.Save(ctx, testRecord("a", now))).To(Succeed())
		err := s.Save(ctx, testRecord("a", now.Add(time.Minute)))
		g.Expect(err).To(MatchError(ErrDuplicateKeyID))

		records, err := s.Load(ctx)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(records).To(HaveLen(1))
	})

	t.Run("invalid records", func(t *testing.T) {
		now := time.Now()
		tests := []struct {
			name        string
			record      Record
			expectedErr string
		}{
			{
				name:        "no id",
				record:      Record{Algorithm: "RS256", CreatedAt: now, PrivateKey: []byte("k")},
				expectedErr: "record id must be set",
			},
			{
				name:        "no algorithm",
				record:      Record{ID: "a", CreatedAt: now, PrivateKey: []byte("k")},
				expectedErr: "record algorithm must be set",
			},
			{
				name:        "no creation time",
				record:      Record{ID: "a", Algorithm: "RS256", PrivateKey: []byte("k")},
				expectedErr: "record creation time must be set",
			},
			{
				name:        "no private key",
				record:      Record{ID: "a", Algorithm: "RS256", CreatedAt: now},
				expectedErr: "record private key must be set",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g := NewWithT(t)
				s := newStore(t)

				err := s.Save(context.Background(), tt.record)
				g.Expect(err).To(MatchError(tt.expectedErr))

				records, err := s.Load(context.Background())
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(records).To(BeEmpty())
			})
		}
	})

	t.Run("concurrent saves", func(t *testing.T) {
		g := NewWithT(t)
		s := newStore(t)
		ctx := context.Background()

		const n = 20
		now := time.Now()
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Save(ctx, testRecord(fmt.Sprintf("key-%d", i), now.Add(time.Duration(i)*time.Second)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			g.Expect(err).ToNot(HaveOccurred())
		}

		records, err := s.Load(ctx)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(records).To(HaveLen(n))
	})
}

func TestMemoryStore(t *testing.T) {
	testKeyStore(t, func(t *testing.T) KeyStore { return NewMemoryStore() })
}

func TestMemoryStore_LoadReturnsCopies(t *testing.T) {
	g := NewWithT(t)
	s := NewMemoryStore()
	ctx := context.Background()

	r := testRecord("a", time.Now())
	g.Expect(s.Save(ctx, r)).To(Succeed())
	r.PrivateKey[0] = 'X'

	records, err := s.Load(ctx)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records[0].PrivateKey).To(Equal([]byte("private-a")))

	records[0].PrivateKey[0] = 'Y'
	again, err := s.Load(ctx)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(again[0].PrivateKey).To(Equal([]byte("private-a")))
}

func TestMemoryStore_SaveCanceled(t *testing.T) {
	g := NewWithT(t)
	s := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g.Expect(s.Save(ctx, testRecord("a", time.Now()))).To(MatchError(context.Canceled))
	records, err := s.Load(context.Background())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(BeEmpty())
}
