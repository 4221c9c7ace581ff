package retry

import (
	"runtime/debug"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/mod/semver"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const driverModule = "github.com/neo4j/neo4j-go-driver/v5"

// MinRetryableDriver is the first driver release whose IsRetryable reports
// session expiry and unavailability accurately.
const MinRetryableDriver = "v5.0.0"

var (
	driverOnce    sync.Once
	driverVersion string
)

// DriverVersion returns the neo4j driver version linked into the binary.
// Binaries without module information report the major version of the
// import path.
func DriverVersion() string {
	driverOnce.Do(func() {
		driverVersion = "v5.0.0"
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, dep := range info.Deps {
			if dep.Path != driverModule {
				continue
			}
			if dep.Replace != nil {
				dep = dep.Replace
			}
			if semver.IsValid(dep.Version) {
				driverVersion = dep.Version
			}
		}
	})
	return driverVersion
}

// Neo4jClassifier retries errors the driver itself marks retryable, such as
// expired sessions and unavailable read services. It never retries when the
// driver is too old to classify errors reliably.
type Neo4jClassifier struct {
	// DriverVersion overrides the detected driver version.
	DriverVersion string
}

// Retryable implements [Classifier].
func (c Neo4jClassifier) Retryable(err error) bool {
	v := c.DriverVersion
	if v == "" {
		v = DriverVersion()
	}
	if !semver.IsValid(v) || semver.Compare(v, MinRetryableDriver) < 0 {
		return false
	}
	return neo4j.IsRetryable(err)
}

// FlightClassifier retries gRPC Unavailable failures of the bulk channel.
type FlightClassifier struct{}

// Retryable implements [Classifier].
func (FlightClassifier) Retryable(err error) bool {
	return err != nil && status.Code(err) == codes.Unavailable
}
