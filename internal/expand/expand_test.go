package expand_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"packmule/internal/artifact"
	"packmule/internal/expand"
	"packmule/internal/scratch"
	"packmule/internal/testsupport"
)

func newWorkspace(t *testing.T, runner *testsupport.FakeRunner) *scratch.Workspace {
	t.Helper()
	ws, err := scratch.Acquire(t.TempDir(), runner, nil)
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	t.Cleanup(func() { _ = ws.Release(context.Background()) })
	return ws
}

func TestExpandPackageInvokesPkgutil(t *testing.T) {
	runner := &testsupport.FakeRunner{}
	ws := newWorkspace(t, runner)
	expander := expand.New(runner, nil)
	art := artifact.Artifact{Path: "/tmp/MyApp.pkg", Kind: artifact.KindPackage}

	result, err := expander.Expand(context.Background(), art, ws, t.TempDir())
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if result.Root != ws.PackageDir() {
		t.Fatalf("expected root %q, got %q", ws.PackageDir(), result.Root)
	}

	calls := runner.Calls()
	if len(calls) != 1 || calls[0].Name != "pkgutil" {
		t.Fatalf("expected single pkgutil call, got %v", calls)
	}
	want := []string{"--expand-full", art.Path, ws.PackageDir()}
	for i, arg := range want {
		if calls[0].Args[i] != arg {
			t.Fatalf("expected args %v, got %v", want, calls[0].Args)
		}
	}
}

func TestExpandPackageSkipsWhenAlreadyExpanded(t *testing.T) {
	runner := &testsupport.FakeRunner{}
	ws := newWorkspace(t, runner)
	if err := os.MkdirAll(ws.PackageDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	expander := expand.New(runner, nil)

	result, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/MyApp.pkg", Kind: artifact.KindPackage}, ws, t.TempDir())
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if result.Root != ws.PackageDir() {
		t.Fatalf("expected existing expansion reused, got %q", result.Root)
	}
	if runner.CallCount("pkgutil") != 0 {
		t.Fatal("expected pkgutil to be skipped for an existing expansion")
	}
}

func TestExpandPackageFailureWrapsOutput(t *testing.T) {
	runner := &testsupport.FakeRunner{Handler: func(name string, args []string) (string, error) {
		return "could not open package", errors.New("exit 1")
	}}
	ws := newWorkspace(t, runner)
	expander := expand.New(runner, nil)

	_, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/MyApp.pkg", Kind: artifact.KindPackage}, ws, t.TempDir())
	if !errors.Is(err, artifact.ErrExpansionFailure) {
		t.Fatalf("expected ErrExpansionFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "could not open package") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestExpandImageWithApplicationsSymlink(t *testing.T) {
	runner := &testsupport.FakeRunner{}
	ws := newWorkspace(t, runner)
	mount := ws.MountPoint()
	if err := os.MkdirAll(filepath.Join(mount, "MyApp.app", "Contents"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/Applications", filepath.Join(mount, "Applications")); err != nil {
		t.Fatal(err)
	}
	expander := expand.New(runner, nil)

	result, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/MyApp.dmg", Kind: artifact.KindImage}, ws, t.TempDir())
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if result.Root != mount {
		t.Fatalf("expected mount root %q, got %q", mount, result.Root)
	}
	if result.ReentryPath != "" {
		t.Fatalf("expected no re-entry for a drag-and-drop image, got %q", result.ReentryPath)
	}
}

func TestExpandImageWithApplicationsAlias(t *testing.T) {
	runner := &testsupport.FakeRunner{Handler: func(name string, args []string) (string, error) {
		if name == "file" {
			return "MacOS Alias file", nil
		}
		return "", nil
	}}
	ws := newWorkspace(t, runner)
	mount := ws.MountPoint()
	if err := os.MkdirAll(mount, 0o755); err != nil {
		t.Fatal(err)
	}
	alias := append([]byte{0x00, 0x01}, []byte("bookXmarkYApplications")...)
	if err := os.WriteFile(filepath.Join(mount, "Applications"), alias, 0o644); err != nil {
		t.Fatal(err)
	}
	expander := expand.New(runner, nil)

	result, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/MyApp.dmg", Kind: artifact.KindImage}, ws, t.TempDir())
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if result.Root != mount {
		t.Fatalf("expected mount root for alias image, got %q", result.Root)
	}
}

func TestExpandImageCopiesLargestNestedPackage(t *testing.T) {
	runner := &testsupport.FakeRunner{}
	ws := newWorkspace(t, runner)
	mount := ws.MountPoint()
	small := filepath.Join(mount, "extras")
	large := filepath.Join(mount, "main")
	for _, dir := range []string{small, large} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(small, "Helper.pkg"), bytes.Repeat([]byte("a"), 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(large, "MyApp.pkg"), bytes.Repeat([]byte("b"), 10_000), 0o644); err != nil {
		t.Fatal(err)
	}
	durable := t.TempDir()
	expander := expand.New(runner, nil)

	result, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/MyApp.dmg", Kind: artifact.KindImage}, ws, durable)
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	if result.ReentryPath != filepath.Join(durable, "MyApp.pkg") {
		t.Fatalf("expected largest package copied for re-entry, got %q", result.ReentryPath)
	}
	if _, err := os.Stat(result.ReentryPath); err != nil {
		t.Fatalf("expected copied package on disk: %v", err)
	}
}

func TestExpandImageRetriesAfterDetachingExistingMount(t *testing.T) {
	attaches := 0
	runner := &testsupport.FakeRunner{Handler: func(name string, args []string) (string, error) {
		if name == "hdiutil" && args[0] == "attach" {
			attaches++
			if attaches == 1 {
				return "hdiutil: attach failed - Resource busy", errors.New("exit 1")
			}
			return "", nil
		}
		if name == "hdiutil" && args[0] == "info" {
			return "image-path : /tmp/MyApp.dmg\n/dev/disk4\ts2\t/Volumes/MyApp", nil
		}
		return "", nil
	}}
	ws := newWorkspace(t, runner)
	if err := os.MkdirAll(ws.MountPoint(), 0o755); err != nil {
		t.Fatal(err)
	}
	expander := expand.New(runner, nil)

	result, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/MyApp.dmg", Kind: artifact.KindImage}, ws, t.TempDir())
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if result.Root != ws.MountPoint() {
		t.Fatalf("expected mount root, got %q", result.Root)
	}
	if attaches != 2 {
		t.Fatalf("expected two attach attempts, got %d", attaches)
	}

	detached := false
	for _, call := range runner.Calls() {
		if call.Name == "hdiutil" && call.Args[0] == "detach" && call.Args[1] == "/dev/disk4" {
			detached = true
		}
	}
	if !detached {
		t.Fatal("expected the stale device to be detached before retrying")
	}
}

func TestExpandImageMountFailure(t *testing.T) {
	runner := &testsupport.FakeRunner{Handler: func(name string, args []string) (string, error) {
		if name == "hdiutil" && args[0] == "attach" {
			return "no mountable file systems", errors.New("exit 1")
		}
		return "", nil
	}}
	ws := newWorkspace(t, runner)
	expander := expand.New(runner, nil)

	_, err := expander.Expand(context.Background(),
		artifact.Artifact{Path: "/tmp/Broken.dmg", Kind: artifact.KindImage}, ws, t.TempDir())
	if !errors.Is(err, artifact.ErrMountFailure) {
		t.Fatalf("expected ErrMountFailure, got %v", err)
	}
	if !strings.Contains(err.Error(), "no mountable file systems") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}
