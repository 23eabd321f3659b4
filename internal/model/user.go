package model

// UserRegistry maps usernames to bcrypt password hashes. The whole registry
// is persisted as one blob in the key/value store.
type UserRegistry map[string]string
