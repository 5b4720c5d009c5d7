package journal

import "context"

// SetSchemaVersionForTest overwrites the recorded schema version.
func SetSchemaVersionForTest(s *Store, version int) error {
	_, err := s.exec(context.Background(), `UPDATE schema_version SET version = ?`, version)
	return err
}
