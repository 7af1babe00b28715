package commands

import (
	"testing"
	"time"

	"github.com/abcxyz/pkg/testutil"
)

func TestServeFlagsValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		flags   serveFlags
		wantErr string
	}{
		{
			name: "all fields set",
			flags: serveFlags{
				port:            "8080",
				queueCapacity:   10_000,
				watchdogTimeout: 2 * time.Hour,
				nameMaxLength:   60,
			},
			wantErr: "",
		},
		{
			name: "missing port",
			flags: serveFlags{
				queueCapacity:   10_000,
				watchdogTimeout: 2 * time.Hour,
				nameMaxLength:   60,
			},
			wantErr: "port is required",
		},
		{
			name: "non-positive queue capacity",
			flags: serveFlags{
				port:            "8080",
				queueCapacity:   0,
				watchdogTimeout: 2 * time.Hour,
				nameMaxLength:   60,
			},
			wantErr: "queue-capacity must be positive",
		},
		{
			name: "non-positive watchdog timeout",
			flags: serveFlags{
				port:            "8080",
				queueCapacity:   10_000,
				watchdogTimeout: 0,
				nameMaxLength:   60,
			},
			wantErr: "watchdog-timeout must be positive",
		},
		{
			name: "non-positive name max length",
			flags: serveFlags{
				port:            "8080",
				queueCapacity:   10_000,
				watchdogTimeout: 2 * time.Hour,
				nameMaxLength:   0,
			},
			wantErr: "name-max-length must be positive",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.flags.Validate()
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("Validate() returned unexpected error (-got, +want): %s", diff)
			}
		})
	}
}
