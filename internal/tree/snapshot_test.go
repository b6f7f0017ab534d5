package tree

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/starford/livepad/internal/kv"
	"github.com/starford/livepad/internal/models"
)

func TestPersistRoundTrip(t *testing.T) {
	s, mem := newStore(t)
	dir, _ := s.CreateFolder("src", nil)
	f, _ := s.CreateFile("app", models.KindJS, &dir.ID)
	_ = s.UpdateContent(f.ID, "console.log(1)")
	_, _ = s.ToggleExpanded(dir.ID)

	before := s.Snapshot()
	after := Load(mem, seqIDs(), quietLogger()).Snapshot()

	a, _ := json.Marshal(before)
	b, _ := json.Marshal(after)
	if string(a) != string(b) {
		t.Errorf("reload differs:\nbefore %s\nafter  %s", a, b)
	}
}

func TestPersistUsesWireKeys(t *testing.T) {
	_, mem := newStore(t)
	for _, key := range []string{KeyFiles, KeyFolders, KeyActiveID} {
		if _, ok, _ := mem.Get(key); !ok {
			t.Errorf("key %s not written", key)
		}
	}
	raw, _, _ := mem.Get(KeyFolders)
	if raw != "[]" {
		t.Errorf("empty folder list persisted as %q", raw)
	}
	raw, _, _ = mem.Get(KeyFiles)
	var files []map[string]any
	if err := json.Unmarshal([]byte(raw), &files); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"id", "name", "kind", "content", "parentId"} {
		if _, ok := files[0][field]; !ok {
			t.Errorf("file record missing %q", field)
		}
	}
}

func TestActiveKeyRemovedWhenEmpty(t *testing.T) {
	s, mem := newStore(t)
	for _, f := range s.Files() {
		_ = s.DeleteFile(f.ID)
	}
	if _, ok, _ := mem.Get(KeyActiveID); ok {
		t.Error("active key should be removed when no file is active")
	}
}

func TestLoadMalformedBootstrapsDefaults(t *testing.T) {
	for name, raw := range map[string]string{
		"garbage": "{not json",
		"empty":   "[]",
		"object":  `{"id":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			mem := kv.NewMemory()
			_ = mem.Set(KeyFiles, raw)
			_ = mem.Set(KeyFolders, `[{"id":"old","name":"old","parentId":null,"expanded":true}]`)
			s := Load(mem, seqIDs(), quietLogger())

			snap := s.Snapshot()
			if len(snap.Files) != 3 || len(snap.Folders) != 0 {
				t.Errorf("files=%d folders=%d, want defaults", len(snap.Files), len(snap.Folders))
			}
		})
	}
}

func TestLoadActiveFallback(t *testing.T) {
	for _, active := range []string{"null", "undefined", "ghost", ""} {
		mem := kv.NewMemory()
		_ = mem.Set(KeyFiles, `[{"id":"a","name":"a.js","kind":"js","content":"","parentId":null},
			{"id":"b","name":"b.css","kind":"css","content":"","parentId":null}]`)
		if active != "" {
			_ = mem.Set(KeyActiveID, active)
		}
		s := Load(mem, seqIDs(), quietLogger())
		if got := s.Snapshot().ActiveID; got != "a" {
			t.Errorf("active %q -> %q, want a", active, got)
		}
	}
}

func TestLoadBrowserSnapshotWithTypeField(t *testing.T) {
	mem := kv.NewMemory()
	_ = mem.Set(KeyFiles, `[{"id":"p1","name":"page.html","type":"html","content":"<h1>hi</h1>","parentId":null},
		{"id":"r1","name":"readme.md","type":"md","content":"# r","parentId":null}]`)
	_ = mem.Set(KeyActiveID, "r1")

	s := Load(mem, seqIDs(), quietLogger())
	snap := s.Snapshot()
	if len(snap.Files) != 2 {
		t.Fatalf("files = %+v", snap.Files)
	}
	if snap.Files[0].Kind != models.KindHTML || snap.Files[1].Kind != models.KindMarkdown {
		t.Errorf("kinds = %q, %q", snap.Files[0].Kind, snap.Files[1].Kind)
	}
	if snap.ActiveID != "r1" {
		t.Errorf("active = %q", snap.ActiveID)
	}

	// The next write uses "kind".
	if err := s.SetActive("p1"); err != nil {
		t.Fatal(err)
	}
	_ = s.UpdateContent("p1", "<h1>bye</h1>")
	raw, _, _ := mem.Get(KeyFiles)
	var written []map[string]any
	if err := json.Unmarshal([]byte(raw), &written); err != nil {
		t.Fatal(err)
	}
	if written[0]["kind"] != "html" {
		t.Errorf("written record = %v", written[0])
	}
}

func TestLoadRepairs(t *testing.T) {
	mem := kv.NewMemory()
	_ = mem.Set(KeyFolders, `[
		{"id":"f1","name":"one","parentId":"f2","expanded":true},
		{"id":"f2","name":"two","parentId":"f1","expanded":true},
		{"id":"f3","name":"three","parentId":"gone","expanded":false},
		{"id":"f3","name":"dup","parentId":null,"expanded":false}
	]`)
	_ = mem.Set(KeyFiles, `[
		{"id":"a","name":"a.rb","kind":"ruby","content":"","parentId":"f1"},
		{"id":"b","name":"b.txt","kind":"txt","content":"","parentId":"nowhere"},
		{"id":"a","name":"again","kind":"txt","content":"","parentId":null}
	]`)
	_ = mem.Set(KeyActiveID, "b")

	snap := Load(mem, seqIDs(), quietLogger()).Snapshot()
	checkInvariants(t, snap)

	if len(snap.Folders) != 3 {
		t.Errorf("folders = %+v, want duplicate dropped", snap.Folders)
	}
	if len(snap.Files) != 2 {
		t.Fatalf("files = %+v, want duplicate dropped", snap.Files)
	}
	if snap.Files[0].Kind != models.KindText {
		t.Errorf("unknown kind repaired to %q", snap.Files[0].Kind)
	}
	if snap.Files[1].ParentID != nil {
		t.Error("dangling file parent should be re-rooted")
	}
	if snap.ActiveID != "b" {
		t.Errorf("active = %q", snap.ActiveID)
	}
}

type failingKV struct{ *kv.Memory }

func (failingKV) Set(string, string) error { return errors.New("disk full") }

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	store := failingKV{Memory: kv.NewMemory()}
	s := Load(store, seqIDs(), quietLogger())
	if len(s.Files()) != 3 {
		t.Fatal("bootstrap should succeed in memory even when writes fail")
	}
	f, err := s.CreateFile("still", models.KindText, nil)
	if err != nil {
		t.Fatalf("CreateFile with failing store: %v", err)
	}
	if _, err := s.File(f.ID); err != nil {
		t.Errorf("file missing from memory: %v", err)
	}
}
