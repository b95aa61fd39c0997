package embedder

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func BenchmarkHashEmbedding(b *testing.B) {
	chunk := strings.Repeat("def handler(request):\n    return render(request, 'index.html')\n", 25)

	for _, dim := range []int{128, LocalDimension, 1024} {
		b.Run(fmt.Sprintf("dim=%d", dim), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = HashEmbedding(chunk, dim)
			}
		})
	}
}

func BenchmarkLocalProvider_Batch(b *testing.B) {
	ctx := context.Background()

	for _, size := range []int{10, DefaultBatchSize} {
		texts := make([]string, size)
		for i := range texts {
			texts[i] = fmt.Sprintf("code chunk %d with more content", i)
		}
		req := BatchEmbeddingRequest{Texts: texts}

		b.Run(fmt.Sprintf("uncached-%d", size), func(b *testing.B) {
			provider, _ := NewLocalProvider(nil)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := provider.GenerateBatch(ctx, req); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(fmt.Sprintf("cached-%d", size), func(b *testing.B) {
			provider, _ := NewLocalProvider(NewCache(DefaultCacheSize))
			_, _ = provider.GenerateBatch(ctx, req)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := provider.GenerateBatch(ctx, req); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkConcurrentCache tests cache performance under concurrent load
func BenchmarkConcurrentCache(b *testing.B) {
	cache := NewCache(DefaultCacheSize)
	emb := &Embedding{
		Vector:    make([]float32, LocalDimension),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     DefaultLocalModel,
	}

	for i := 0; i < 1000; i++ {
		cache.Set(fmt.Sprintf("hash-%d", i), emb)
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			// Mix of reads and writes
			if i%3 == 0 {
				cache.Set(fmt.Sprintf("hash-%d", i%2000), emb)
			} else {
				_, _ = cache.Get(fmt.Sprintf("hash-%d", i%2000))
			}
			i++
		}
	})
}
