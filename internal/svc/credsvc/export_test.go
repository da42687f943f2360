package credsvc

// SetCompare replaces the hash comparison used by Verify.
func (s *CredentialStore) SetCompare(compare func(hash, password []byte) error) {
	s.compare = compare
}
