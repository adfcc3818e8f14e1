package svtree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// benchJSSource is a realistic module with nested scopes, hoisting and a
// mix of supported and unsupported constructs.
const benchJSSource = `const DEFAULTS = { retries: 3, timeout: 1000 };
let cache = [];
var hits = 0, misses = 0;

function lookup(key) {
	for (let i = 0; i < cache.length; i++) {
		if (cache[i].key === key) {
			hits++;
			return cache[i].value;
		}
	}
	misses++;
	return undefined;
}

function store(key, value) {
	const entry = { key, value, at: Date.now() };
	cache.push(entry);
	if (cache.length > limit) {
		cache.shift();
	}
	return entry;
}

class Client {
	constructor(base) {
		this.base = base;
	}

	async get(path) {
		const hit = lookup(path);
		if (hit !== undefined) {
			return hit;
		}
		try {
			const res = await fetch(this.base + path);
			return store(path, await res.json());
		} catch (err) {
			console.error(err);
			return null;
		}
	}
}

let ratio = hits / (hits + misses || 1);
let enabled = !disabled && ratio > 0.5;
let names = ["alpha", "beta", -1, typeof window];
const limit = DEFAULTS.retries * 100;
`

func BenchmarkTransform(b *testing.B) {
	src := []byte(benchJSSource)
	ctx := context.Background()
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Transform(ctx, src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAnalyzeExtended(b *testing.B) {
	src := []byte(benchJSSource)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Analyze(ctx, src, "javascript", Extended()); err != nil {
			b.Fatal(err)
		}
	}
}

// writeBenchFiles writes n variants of benchJSSource so every file hashes
// differently.
func writeBenchFiles(b *testing.B, n int) []string {
	b.Helper()
	dir := b.TempDir()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("mod%03d.js", i))
		src := strings.Replace(benchJSSource, "retries: 3", fmt.Sprintf("retries: %d", i), 1)
		if err := os.WriteFile(paths[i], []byte(src), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	return paths
}

func BenchmarkIndexFiles(b *testing.B) {
	for _, parallel := range []bool{false, true} {
		name := "serial"
		if parallel {
			name = "parallel"
		}
		b.Run(name, func(b *testing.B) {
			paths := writeBenchFiles(b, 50)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				e, err := New(filepath.Join(b.TempDir(), "bench.db"), WithParallel(parallel))
				if err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				if err := e.IndexFiles(context.Background(), paths); err != nil {
					b.Fatal(err)
				}

				b.StopTimer()
				e.Close()
				b.StartTimer()
			}
		})
	}
}
