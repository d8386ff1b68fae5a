package buildtime_test

import (
	"strings"
	"testing"

	"github.com/opst/backorder/pkg/buildtime"
)

func TestVersionString(t *testing.T) {
	v := buildtime.VersionString()
	if !strings.HasPrefix(v, buildtime.Version()+" ") {
		t.Errorf("version is not leading: %s", v)
	}
	if !strings.Contains(v, "(commit: "+buildtime.Revision()+")") {
		t.Errorf("revision is missing: %s", v)
	}
	if buildtime.Version() == "" || strings.ContainsAny(buildtime.Version(), "\n ") {
		t.Errorf("unexpected version: %q", buildtime.Version())
	}
}
