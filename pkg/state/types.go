package state

import "path/filepath"

type Paths struct {
	DB    string
	Store string
	State string
	Audit string
	Sweep string
	Tmp   string
	Tel   string
	Logs  string
	Crash string
}

func PathsFor(dbPath string) Paths {
	statePath := filepath.Join(dbPath, "state")
	return Paths{
		// base
		DB: dbPath,

		// mains
		Store: filepath.Join(dbPath, "store"),

		// state
		State: statePath,
		Audit: filepath.Join(statePath, "audit"),
		Sweep: filepath.Join(statePath, "sweep"),
		Tmp:   filepath.Join(statePath, "tmp"),
		Tel:   filepath.Join(statePath, "telemetry"),
		Logs:  filepath.Join(statePath, "logs"),
		Crash: filepath.Join(statePath, "crash"),
	}
}

// Convenience helpers
func StorePath(dbPath string) string { return PathsFor(dbPath).Store }
func StatePath(dbPath string) string { return PathsFor(dbPath).State }
func AuditPath(dbPath string) string { return PathsFor(dbPath).Audit }
func SweepPath(dbPath string) string { return PathsFor(dbPath).Sweep }
func TmpPath(dbPath string) string   { return PathsFor(dbPath).Tmp }
func TelPath(dbPath string) string   { return PathsFor(dbPath).Tel }
func CrashPath(dbPath string) string { return PathsFor(dbPath).Crash }
