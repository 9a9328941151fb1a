package instance

import (
	"os"

	"github.com/mazaj-interiors/payments-backend/pkg/env"
)

// GetID identifies this worker replica. The id shows up as the distributed
// lock owner and as a log field, so a stuck lock can be traced back to the
// replica holding it. Kubernetes sets HOSTNAME to the pod name, which is
// unique per replica; WORKER_ID wins when set explicitly.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
