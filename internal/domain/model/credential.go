package model

// CredentialID is the fixed row identity of the single API credential.
const CredentialID = 1

// Credential holds the bearer token that guards the API. Exactly one exists
// per installation and it is never rotated.
type Credential struct {
	Token string
}
