package inventory

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashBundleBinaries(t *testing.T) {
	t.Run("SameContentSameHash", func(t *testing.T) {
		root := t.TempDir()
		a := writeBundle(t, root, "A.aaxplugin", "com.acme.a", "1.0", "1", []byte("identical payload"))
		b := writeBundle(t, root, "B.aaxplugin", "com.acme.b", "1.0", "1", []byte("identical payload"))

		hashA, err := hashBundleBinaries(a)
		if err != nil {
			t.Fatalf("hash A: %v", err)
		}
		hashB, err := hashBundleBinaries(b)
		if err != nil {
			t.Fatalf("hash B: %v", err)
		}
		if hashA == "" || hashA != hashB {
			t.Errorf("Expected equal non-empty hashes, got %q and %q", hashA, hashB)
		}
	})

	t.Run("DifferentContentDifferentHash", func(t *testing.T) {
		root := t.TempDir()
		a := writeBundle(t, root, "A.aaxplugin", "com.acme.a", "1.0", "1", []byte("payload one"))
		b := writeBundle(t, root, "B.aaxplugin", "com.acme.b", "1.0", "1", []byte("payload two"))

		hashA, _ := hashBundleBinaries(a)
		hashB, _ := hashBundleBinaries(b)
		if hashA == hashB {
			t.Error("Different payloads must not collide")
		}
	})

	t.Run("FilenameAffectsHash", func(t *testing.T) {
		root := t.TempDir()
		a := writeBundle(t, root, "A.aaxplugin", "com.acme.a", "1.0", "1", nil)
		b := writeBundle(t, root, "B.aaxplugin", "com.acme.b", "1.0", "1", nil)
		if err := os.WriteFile(filepath.Join(a, "Contents", "MacOS", "one"), []byte("x"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(b, "Contents", "MacOS", "two"), []byte("x"), 0o755); err != nil {
			t.Fatal(err)
		}

		hashA, _ := hashBundleBinaries(a)
		hashB, _ := hashBundleBinaries(b)
		if hashA == hashB {
			t.Error("Renamed payload file must change the hash")
		}
	})

	t.Run("NoPayloadNoHash", func(t *testing.T) {
		root := t.TempDir()
		bundle := filepath.Join(root, "Empty.aaxplugin")
		if err := os.MkdirAll(filepath.Join(bundle, "Contents"), 0o755); err != nil {
			t.Fatal(err)
		}

		hash, err := hashBundleBinaries(bundle)
		if err != nil {
			t.Fatalf("Expected graceful degradation, got %v", err)
		}
		if hash != "" {
			t.Errorf("Expected empty hash, got %q", hash)
		}
	})
}
