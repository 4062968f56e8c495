package test

import (
	"os"
	"testing"
)

const (
	EnvFirestoreProjectID  = "TEST_FIRESTORE_PROJECT_ID"
	EnvFirestoreDatabaseID = "TEST_FIRESTORE_DATABASE_ID"
	EnvStorageBucket       = "TEST_STORAGE_BUCKET"
	EnvStoragePrefix       = "TEST_STORAGE_PREFIX"
)

// EnvVars holds environment variables a test requires. Tests skip when one of
// them is unset.
type EnvVars struct {
	t    *testing.T
	vars map[string]string
}

func NewEnvVars(t *testing.T, keys ...string) EnvVars {
	t.Helper()
	e := EnvVars{
		t:    t,
		vars: map[string]string{},
	}

	for _, key := range keys {
		value, ok := os.LookupEnv(key)
		if !ok || value == "" {
			t.Skipf("skipping test because %s is not set", key)
		}
		e.vars[key] = value
	}

	return e
}

// Get returns a required variable. Asking for a key not passed to NewEnvVars
// is a bug in the test and fails it.
func (e EnvVars) Get(key string) string {
	v, ok := e.vars[key]
	if !ok {
		e.t.Fatalf("env var %s was not requested", key)
	}
	return v
}

// Optional returns an environment variable that may be empty.
func Optional(key string) string {
	return os.Getenv(key)
}

// Firestore returns the project and database for Firestore-backed tests.
func Firestore(t *testing.T) (projectID, databaseID string) {
	t.Helper()
	vars := NewEnvVars(t, EnvFirestoreProjectID, EnvFirestoreDatabaseID)
	return vars.Get(EnvFirestoreProjectID), vars.Get(EnvFirestoreDatabaseID)
}

// StorageBucket returns the bucket and object prefix for Cloud Storage tests.
func StorageBucket(t *testing.T) (bucket, prefix string) {
	t.Helper()
	vars := NewEnvVars(t, EnvStorageBucket)
	return vars.Get(EnvStorageBucket), Optional(EnvStoragePrefix)
}
