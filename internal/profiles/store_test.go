package profiles

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/acolita/hydra-sh/internal/ssh"
	"github.com/acolita/hydra-sh/internal/testing/fakes/fakefs"
)

const storePath = "/home/test/.local/share/hydra/connections.yaml"

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newStore(t *testing.T) (*Store, *fakefs.FS) {
	t.Helper()
	fsys := fakefs.New()
	return Open(storePath, WithFileSystem(fsys), WithIDGenerator(sequentialIDs())), fsys
}

func TestSaveAssignsIDAndPersists(t *testing.T) {
	store, fsys := newStore(t)

	saved, err := store.Save(ssh.ConnectionConfig{Name: "web", Host: "10.0.0.5", Username: "ops", Password: "pw", AppUser: "alice"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", saved.ID)
	}
	if saved.AppUser != "" {
		t.Errorf("AppUser = %q, want it dropped", saved.AppUser)
	}

	data, err := fsys.ReadFile(storePath)
	if err != nil {
		t.Fatalf("profiles file not written: %v", err)
	}
	if !strings.Contains(string(data), "host: 10.0.0.5") || strings.Contains(string(data), "alice") {
		t.Errorf("file = %s", data)
	}
	if mode := fsys.Mode(storePath); mode != 0600 {
		t.Errorf("mode = %o, want 0600", mode)
	}
	if _, err := fsys.ReadFile(storePath + ".tmp"); err == nil {
		t.Error("temporary file left behind")
	}
}

func TestSaveUpsertsByID(t *testing.T) {
	store, _ := newStore(t)
	first, _ := store.Save(ssh.ConnectionConfig{Name: "db", Host: "10.0.0.7", Username: "ops"})

	first.Host = "10.0.0.8"
	if _, err := store.Save(first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	list := store.List()
	if len(list) != 1 || list[0].Host != "10.0.0.8" {
		t.Errorf("List() = %+v, want one updated profile", list)
	}
}

func TestReopenLoadsProfiles(t *testing.T) {
	store, fsys := newStore(t)
	jump, _ := store.Save(ssh.ConnectionConfig{Name: "bastion", Host: "b.example.com", Username: "j", IsJump: true})
	store.Save(ssh.ConnectionConfig{Name: "app", Host: "10.1.0.2", Username: "ops", UseAgent: true, JumpConfig: &jump})

	reopened := Open(storePath, WithFileSystem(fsys))
	list := reopened.List()
	if len(list) != 2 {
		t.Fatalf("List() = %d profiles, want 2", len(list))
	}
	app := list[0]
	if app.Name != "app" || !app.UseAgent || app.JumpConfig == nil || app.JumpConfig.Host != "b.example.com" {
		t.Errorf("app = %+v", app)
	}
	if names := reopened.JumpHosts(); len(names) != 1 || names[0] != "bastion" {
		t.Errorf("JumpHosts() = %v", names)
	}
}

func TestOpenToleratesBadFile(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile(storePath, []byte("connections: {{{"), 0600)

	store := Open(storePath, WithFileSystem(fsys))
	if n := len(store.List()); n != 0 {
		t.Errorf("List() = %d profiles from a corrupt file", n)
	}
	if store.Err() == nil {
		t.Error("Err() = nil for a corrupt file")
	}
}

func TestCorruptFileIsNeverOverwritten(t *testing.T) {
	original := "connections:\n  - id: keep-1\n    name: prod\n    host: 10.0.0.1\n    username: root\n  - {name: broken, host: [\n"
	fsys := fakefs.New()
	fsys.AddFile(storePath, []byte(original), 0600)
	store := Open(storePath, WithFileSystem(fsys), WithIDGenerator(sequentialIDs()))

	if _, err := store.Save(ssh.ConnectionConfig{Name: "new", Host: "h", Username: "u"}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Save() error = %v, want ErrReadOnly", err)
	}
	if _, err := store.Add(ssh.ConnectionConfig{Name: "other", Host: "h", Username: "u"}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Add() error = %v, want ErrReadOnly", err)
	}

	data, err := fsys.ReadFile(storePath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != original {
		t.Errorf("profiles file rewritten:\n%s", data)
	}
	if n := len(store.List()); n != 0 {
		t.Errorf("List() = %d profiles, want the failed save rolled back", n)
	}
}

func TestUnreadableFileIsReadOnly(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile(storePath, []byte("connections: []\n"), 0600)
	fsys.Fail(fakefs.OpRead, errors.New("permission denied"))
	store := Open(storePath, WithFileSystem(fsys))

	if store.Err() == nil {
		t.Fatal("Err() = nil for an unreadable file")
	}
	if _, err := store.Save(ssh.ConnectionConfig{Name: "new", Host: "h", Username: "u"}); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Save() error = %v, want ErrReadOnly", err)
	}
}

func TestMissingFileIsWritable(t *testing.T) {
	store, _ := newStore(t)
	if err := store.Err(); err != nil {
		t.Errorf("Err() = %v for a missing file", err)
	}
}

func TestOpenAssignsMissingIDs(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile(storePath, []byte("connections:\n  - name: legacy\n    host: 10.0.0.9\n    username: root\n"), 0600)

	store := Open(storePath, WithFileSystem(fsys), WithIDGenerator(sequentialIDs()))
	p, err := store.Find("legacy")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if p.ID != "id-1" {
		t.Errorf("ID = %q, want id-1", p.ID)
	}
}

func TestDelete(t *testing.T) {
	store, _ := newStore(t)
	p, _ := store.Save(ssh.ConnectionConfig{Name: "old", Host: "h", Username: "u"})

	if err := store.Delete(p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete("missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestWriteFailureRollsBack(t *testing.T) {
	store, fsys := newStore(t)
	kept, _ := store.Save(ssh.ConnectionConfig{Name: "kept", Host: "h", Username: "u"})

	fsys.Fail(fakefs.OpRename, errors.New("disk full"))
	if _, err := store.Save(ssh.ConnectionConfig{Name: "new", Host: "h2", Username: "u"}); err == nil {
		t.Fatal("Save() succeeded on a failing disk")
	}
	if fsys.Exists(storePath + ".tmp") {
		t.Error("temporary file left behind after a failed rename")
	}
	if err := store.Delete(kept.ID); err == nil {
		t.Fatal("Delete() succeeded on a failing disk")
	}

	list := store.List()
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Errorf("List() = %+v, want only the persisted profile", list)
	}
}

func TestAddRejectsTakenName(t *testing.T) {
	store, _ := newStore(t)
	first, err := store.Add(ssh.ConnectionConfig{Name: "prod", Host: "h", Username: "u"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := store.Add(ssh.ConnectionConfig{Name: "prod", Host: "h2", Username: "u"}); !errors.Is(err, ErrNameTaken) {
		t.Errorf("Add() duplicate error = %v, want ErrNameTaken", err)
	}
	first.Port = 2222
	if _, err := store.Add(first); err != nil {
		t.Errorf("Add() of the same profile error = %v", err)
	}
}

func TestFindByIDOrName(t *testing.T) {
	store, _ := newStore(t)
	p, _ := store.Save(ssh.ConnectionConfig{Name: "cache", Host: "h", Username: "u"})

	for _, ref := range []string{p.ID, "cache"} {
		got, err := store.Find(ref)
		if err != nil || got.ID != p.ID {
			t.Errorf("Find(%q) = %+v, %v", ref, got, err)
		}
	}
	if _, err := store.Find("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Find(nope) error = %v", err)
	}
}
