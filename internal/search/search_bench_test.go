package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/inferloop/tabanon/internal/privacy"
	"github.com/inferloop/tabanon/internal/quality"
	"github.com/inferloop/tabanon/internal/testutil"
)

func BenchmarkSearch(b *testing.B) {
	fx := testutil.RandomFixture(b, 42, 2000, []int{16, 8, 32}, 6)
	models := []privacy.Model{
		privacy.KAnonymity{K: 5},
		privacy.EntropyLDiversity{Attribute: "s", L: 2},
	}
	metric := quality.MetricConfig{Kind: quality.KindLoss, Aggregation: quality.AggregationSum}

	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			p := newProblem(b, fx, models, 0.02, metric)
			s := newTestSearcher(workers)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Search(context.Background(), p); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
