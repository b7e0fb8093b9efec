package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// collectors is filled by the init funcs of this package.
var collectors []prometheus.Collector

func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// RegisterWith registers the package collectors on reg. Collectors that reg already
// holds are skipped, so a second call is a no-op.
func RegisterWith(reg prometheus.Registerer) error {
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var dup prometheus.AlreadyRegisteredError
			if errors.As(err, &dup) {
				continue
			}
			return err
		}
	}
	return nil
}

// MustRegister registers on the default registry and panics on a conflicting descriptor.
func MustRegister() {
	if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

const maxLabelLen = 64

// norm lowercases and trims a label value, caps its length and maps empty to "unknown".
func norm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}
