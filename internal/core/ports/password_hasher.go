package ports

// PasswordHasher produces and checks one-way salted password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches encoded. An error means the
	// encoded hash itself is unusable.
	Verify(password, encoded string) (bool, error)
}
