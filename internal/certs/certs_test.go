package certs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const samplePEM = `-----BEGIN CERTIFICATE-----
MIIBszCCAVmgAwIBAgIUTESTLEAF
-----END CERTIFICATE-----`

const sampleCA = `-----BEGIN CERTIFICATE-----
MIIBtjCCAVugAwIBAgIUTESTCA
-----END CERTIFICATE-----`

// writeProbe creates a shell script standing in for openssl. It ignores its
// arguments and runs body.
func writeProbe(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil { //nolint:gosec // test script must be executable
		t.Fatalf("writing probe: %v", err)
	}
	return path
}

func newTestProvisioner(t *testing.T, probeBody string, timeout time.Duration) *Provisioner {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "printers"), "blcert.pem")
	return NewProvisioner(Config{
		Binary:  writeProbe(t, probeBody),
		Port:    8883,
		Timeout: timeout,
	}, store)
}

func TestExtractCertificates(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "no certificates",
			output: "CONNECTED(00000003)\nverify error:num=18\n",
			want:   "",
		},
		{
			name:   "single block with surrounding noise",
			output: "CONNECTED(00000003)\n depth=0 CN = 01P00A000000000\n" + samplePEM + "\n---\nServer certificate\n",
			want:   samplePEM + "\n",
		},
		{
			name:   "chain keeps order",
			output: "Certificate chain\n 0 s:CN = leaf\n" + samplePEM + "\n 1 s:CN = ca\n" + sampleCA + "\n---\n",
			want:   samplePEM + "\n" + sampleCA + "\n",
		},
		{
			name:   "crlf line endings",
			output: strings.ReplaceAll(samplePEM, "\n", "\r\n") + "\r\n",
			want:   samplePEM + "\n",
		},
		{
			name:   "unterminated block ignored",
			output: samplePEM + "\n-----BEGIN CERTIFICATE-----\nMIItruncated\n",
			want:   samplePEM + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCertificates([]byte(tt.output))
			if string(got) != tt.want {
				t.Errorf("ExtractCertificates() = %q, want %q", got, tt.want)
			}
			if tt.want == "" && got != nil {
				t.Error("ExtractCertificates() should return nil when nothing is found")
			}
		})
	}
}

func TestStore_Paths(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "blcert.pem")

	path, err := s.Path("Printer1")
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if want := filepath.Join(root, "Printer1", "blcert.pem"); path != want {
		t.Errorf("Path() = %q, want %q", path, want)
	}

	// Names with spaces are fine, they are just directory names.
	if _, err := s.Path("Printer S1"); err != nil {
		t.Errorf("Path(with space) error = %v", err)
	}
}

func TestStore_InvalidNames(t *testing.T) {
	s := NewStore(t.TempDir(), "blcert.pem")
	for _, name := range []string{"", "  ", ".", "..", "../escape", `a\b`, "a/b"} {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Dir(name); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Dir(%q) error = %v, want ErrInvalidName", name, err)
			}
			if s.Exists(name) {
				t.Errorf("Exists(%q) = true", name)
			}
		})
	}
}

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore(t.TempDir(), "blcert.pem")

	if s.Exists("P1") {
		t.Fatal("Exists() = true before provisioning")
	}
	if err := s.EnsureDir("P1"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if s.Exists("P1") {
		t.Fatal("Exists() = true for empty directory")
	}

	if err := s.Write("P1", []byte(samplePEM)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !s.Exists("P1") {
		t.Fatal("Exists() = false after Write()")
	}

	// Overwrite replaces content.
	if err := s.Write("P1", []byte(sampleCA)); err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	path, _ := s.Path("P1")
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading bundle: %v", err)
	}
	if string(got) != sampleCA {
		t.Errorf("bundle = %q, want overwritten content", got)
	}

	if err := s.RemoveDir("P1"); err != nil {
		t.Fatalf("RemoveDir() error = %v", err)
	}
	dir, _ := s.Dir("P1")
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("directory still present after RemoveDir(): %v", err)
	}
	// Removing again is a no-op.
	if err := s.RemoveDir("P1"); err != nil {
		t.Errorf("second RemoveDir() error = %v", err)
	}
}

func TestProvisioner_Fetch(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		timeout time.Duration
		wantErr error
	}{
		{
			name:    "success with non-zero exit",
			body:    "echo CONNECTED\ncat <<'PEM'\n" + samplePEM + "\nPEM\nexit 1",
			timeout: 5 * time.Second,
		},
		{
			name:    "no output",
			body:    "echo 'connect: Connection refused' 1>&2\nexit 1",
			timeout: 5 * time.Second,
			wantErr: ErrNoOutput,
		},
		{
			name:    "no certificates",
			body:    "echo CONNECTED\necho 'no peer certificate available'",
			timeout: 5 * time.Second,
			wantErr: ErrNoCertificates,
		},
		{
			name:    "timeout",
			body:    "sleep 30",
			timeout: 200 * time.Millisecond,
			wantErr: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvisioner(t, tt.body, tt.timeout)
			bundle, err := p.Fetch(context.Background(), "127.0.0.1", 0)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if !bytes.Contains(bundle, []byte("MIIBszCCAVmgAwIBAgIUTESTLEAF")) {
				t.Errorf("bundle = %q, want sample certificate", bundle)
			}
		})
	}
}

func TestProvisioner_FetchSpawnFailure(t *testing.T) {
	store := NewStore(t.TempDir(), "blcert.pem")
	p := NewProvisioner(Config{Binary: "/nonexistent/openssl", Port: 8883, Timeout: time.Second}, store)

	if _, err := p.Fetch(context.Background(), "127.0.0.1", 0); !errors.Is(err, ErrProcess) {
		t.Errorf("Fetch() error = %v, want ErrProcess", err)
	}
}

func TestProvisioner_Provision(t *testing.T) {
	p := newTestProvisioner(t, "cat <<'PEM'\n"+samplePEM+"\n"+sampleCA+"\nPEM", 5*time.Second)

	if err := p.Provision(context.Background(), "10.0.0.5", "Printer1"); err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if !p.Store().Exists("Printer1") {
		t.Fatal("bundle not stored")
	}

	if err := p.Provision(context.Background(), "10.0.0.5", "../x"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Provision(bad name) error = %v, want ErrInvalidName", err)
	}
}

func TestProvisioner_ProvisionAsync(t *testing.T) {
	t.Run("stores bundle in background", func(t *testing.T) {
		p := newTestProvisioner(t, "sleep 0.2\ncat <<'PEM'\n"+samplePEM+"\nPEM", 5*time.Second)
		if err := p.EnsureDir("Printer1"); err != nil {
			t.Fatalf("EnsureDir() error = %v", err)
		}

		start := time.Now()
		p.ProvisionAsync("10.0.0.5", "Printer1")
		if time.Since(start) > 100*time.Millisecond {
			t.Error("ProvisionAsync() blocked the caller")
		}

		p.Wait()
		if !p.Store().Exists("Printer1") {
			t.Error("bundle not stored after Wait()")
		}
	})

	t.Run("failure is only logged", func(t *testing.T) {
		p := newTestProvisioner(t, "exit 1", 5*time.Second)
		logger := &recordingLogger{}
		p.SetLogger(logger)

		p.ProvisionAsync("10.0.0.5", "Printer1")
		p.Wait()

		if p.Store().Exists("Printer1") {
			t.Error("bundle stored despite probe failure")
		}
		if logger.warnings() != 1 {
			t.Errorf("warnings = %d, want 1", logger.warnings())
		}
	})

	t.Run("missing directory is not recreated", func(t *testing.T) {
		p := newTestProvisioner(t, "cat <<'PEM'\n"+samplePEM+"\nPEM", 5*time.Second)
		logger := &recordingLogger{}
		p.SetLogger(logger)

		p.ProvisionAsync("10.0.0.5", "Printer1")
		p.Wait()

		dir, _ := p.Store().Dir("Printer1") //nolint:errcheck // valid name
		if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("directory %s created by background run: %v", dir, err)
		}
		if logger.warnings() != 0 {
			t.Errorf("warnings = %d, want 0 for an abandoned run", logger.warnings())
		}
	})

	t.Run("RemoveDir cancels the running fetch", func(t *testing.T) {
		p := newTestProvisioner(t, "sleep 5\ncat <<'PEM'\n"+samplePEM+"\nPEM", 10*time.Second)
		if err := p.EnsureDir("Printer1"); err != nil {
			t.Fatalf("EnsureDir() error = %v", err)
		}

		p.ProvisionAsync("10.0.0.5", "Printer1")
		time.Sleep(100 * time.Millisecond)
		if err := p.RemoveDir("Printer1"); err != nil {
			t.Fatalf("RemoveDir() error = %v", err)
		}

		done := make(chan struct{})
		go func() {
			p.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("background run kept going after RemoveDir()")
		}
		if p.Exists("Printer1") {
			t.Error("bundle stored after RemoveDir()")
		}
	})
}

func TestStore_Replace(t *testing.T) {
	s := NewStore(t.TempDir(), "blcert.pem")

	if err := s.Replace("P1", []byte(samplePEM)); !errors.Is(err, ErrNoDirectory) {
		t.Fatalf("Replace() without directory error = %v, want ErrNoDirectory", err)
	}
	if s.Exists("P1") {
		t.Fatal("Replace() created a bundle without a directory")
	}

	if err := s.EnsureDir("P1"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if err := s.Replace("P1", []byte(samplePEM)); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if !s.Exists("P1") {
		t.Error("bundle missing after Replace()")
	}

	if err := s.Replace("../P1", []byte(samplePEM)); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Replace(bad name) error = %v, want ErrInvalidName", err)
	}
}

type recordingLogger struct {
	noopLogger
	mu   sync.Mutex
	warn int
}

func (l *recordingLogger) Warn(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn++
}

func (l *recordingLogger) warnings() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warn
}
