package loader

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/KaramelBytes/surveylens/internal/dataset"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

const sampleCSV = "code,group,sleep\nabc,teen,8\nxyz,parent,4\n"

// testServerSequence answers with statuses in order and serves sampleCSV on 2xx.
func testServerSequence(t *testing.T, statuses []int, headers []http.Header) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/export" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if headers != nil && i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		st := statuses[i]
		if st >= 200 && st < 300 {
			w.Header().Set("Content-Type", "text/csv")
			w.WriteHeader(st)
			_, _ = w.Write([]byte(sampleCSV))
			return
		}
		w.WriteHeader(st)
		_, _ = w.Write([]byte("try later"))
	}))
	return srv, &idx
}

func TestLoadParsesExportAndStampsSnapshot(t *testing.T) {
	srv, _ := testServerSequence(t, []int{200}, nil)
	defer srv.Close()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(NewHTTPSourceWithRetry(srv.URL+"/export", 2*time.Second, 1, 10*time.Millisecond, 50*time.Millisecond))
	l.Now = func() time.Time { return at }
	tbl, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 || !tbl.HasColumn("sleep") {
		t.Fatalf("unexpected table: %d rows, columns %v", tbl.Len(), tbl.Columns())
	}
	if k, _ := tbl.ColumnKind("sleep"); k != dataset.KindNumber {
		t.Fatalf("expected numeric sleep column, got %v", k)
	}
	if tbl.ID == "" || !tbl.LoadedAt.Equal(at) {
		t.Fatalf("expected snapshot id and load time, got %q %v", tbl.ID, tbl.LoadedAt)
	}
}

func TestLoadRetriesOn429And5xx(t *testing.T) {
	srv, hits := testServerSequence(t, []int{429, 503, 200}, []http.Header{{"Retry-After": {"0"}}, {}, {}})
	defer srv.Close()

	l := New(NewHTTPSourceWithRetry(srv.URL+"/export", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tbl, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestLoadCapsRetryAfterAtMaxDelay(t *testing.T) {
	srv, hits := testServerSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"3600"}}, {}})
	defer srv.Close()

	l := New(NewHTTPSourceWithRetry(srv.URL+"/export", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	tbl, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Fatalf("Retry-After was not capped: load took %v", took)
	}
	if tbl.Len() != 2 || atomic.LoadInt32(hits) != 2 {
		t.Fatalf("expected 2 rows after 2 attempts, got %d rows %d attempts", tbl.Len(), atomic.LoadInt32(hits))
	}
}

func TestLoadRejectsExportWithoutResponses(t *testing.T) {
	for name, body := range map[string]string{
		"empty":       "",
		"header only": "code,group,sleep\n",
		"blank rows":  "code,group,sleep\n,,\n",
	} {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), "responses.csv")
			if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			tbl, err := New(FileSource{Path: p}).Load(context.Background())
			if !errors.Is(err, ErrLoadFailure) || !errors.Is(err, ErrNoResponses) {
				t.Fatalf("expected no-responses load failure, got %v", err)
			}
			var le *LoadError
			if !errors.As(err, &le) || le.Source != p {
				t.Fatalf("expected *LoadError naming the source, got %#v", err)
			}
			if tbl == nil || !tbl.IsEmpty() {
				t.Fatalf("expected empty non-nil table")
			}
		})
	}
}

func TestLoadFailureReturnsEmptyTable(t *testing.T) {
	srv, hits := testServerSequence(t, []int{404}, nil)
	defer srv.Close()

	l := New(NewHTTPSourceWithRetry(srv.URL+"/export", 2*time.Second, 3, 10*time.Millisecond, 50*time.Millisecond))
	tbl, err := l.Load(context.Background())
	if !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
	if tbl == nil || !tbl.IsEmpty() {
		t.Fatalf("expected empty table on failure")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected StatusError 404 in chain, got %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Fatalf("4xx should not be retried, got %d attempts", n)
	}
}

func TestLoadGivesUpAfterMaxAttempts(t *testing.T) {
	srv, hits := testServerSequence(t, []int{500}, nil)
	defer srv.Close()

	l := New(NewHTTPSourceWithRetry(srv.URL+"/export", 2*time.Second, 2, 5*time.Millisecond, 10*time.Millisecond))
	_, err := l.Load(context.Background())
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if !strings.Contains(le.Source, "/export") {
		t.Fatalf("expected source name in error, got %q", le.Source)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestLoadRejectsHTMLPage(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>Sign in</body></html>"))
	}))
	defer srv.Close()

	l := New(NewHTTPSourceWithRetry(srv.URL, 2*time.Second, 1, 0, 0))
	if _, err := l.Load(context.Background()); !errors.Is(err, ErrLoadFailure) {
		t.Fatalf("expected load failure for HTML response, got %v", err)
	}
}

func TestHTTPSourceNameDropsQuery(t *testing.T) {
	s := NewHTTPSource("https://docs.google.com/spreadsheets/d/abc/export?format=csv&gid=0")
	if got := s.Name(); got != "https://docs.google.com/spreadsheets/d/abc/export" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "responses.csv")
	if err := os.WriteFile(p, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := New(FileSource{Path: p}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tbl.Len())
	}

	_, err = New(FileSource{Path: filepath.Join(dir, "missing.csv")}).Load(context.Background())
	if !errors.Is(err, ErrLoadFailure) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected wrapped not-exist load failure, got %v", err)
	}
}

func TestFileSourceXLSX(t *testing.T) {
	p := filepath.Join(t.TempDir(), "responses.xlsx")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"xl/workbook.xml":            `<workbook><sheets><sheet name="Form" r:id="rId1" xmlns:r="r"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<Relationships><Relationship Id="rId1" Target="worksheets/sheet1.xml"/></Relationships>`,
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData>` +
			`<row><c r="A1" t="inlineStr"><is><t>code</t></is></c><c r="B1" t="inlineStr"><is><t>sleep</t></is></c></row>` +
			`<row><c r="A2" t="inlineStr"><is><t>moon</t></is></c><c r="B2"><v>8</v></c></row>` +
			`</sheetData></worksheet>`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	l := New(FileSource{Path: p})
	l.Options.Sheet = "form"
	tbl, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", tbl.Len())
	}
	if v := tbl.Row(0).Get("sleep"); !v.IsNumber() || v.Num != 8 {
		t.Fatalf("expected numeric sleep 8, got %+v", v)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if s, err := parseRetryAfterSeconds("7"); err != nil || s != 7 {
		t.Fatalf("expected 7, got %d %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Fatalf("expected error for invalid header")
	}
}
