// Package version хранит сведения о сборке sales-service, заполняемые через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/salescore/internal/version.version=v1.4.0"
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build описывает собранный бинарник.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// IsRelease сообщает, что версия проставлена при сборке.
func (b Build) IsRelease() bool {
	return b.Version != "" && b.Version != "dev"
}

// Labels отдаёт сведения о сборке в виде меток для build_info.
func (b Build) Labels() map[string]string {
	return map[string]string{"version": b.Version, "commit": b.Commit, "date": b.Date}
}

func (b Build) String() string {
	return fmt.Sprintf("sales-service version=%s commit=%s date=%s", b.Version, b.Commit, b.Date)
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// String описывает текущую сборку одной строкой для логов.
func String() string { return Current().String() }
