package service

import (
	"github.com/TommyBez/v0-hub/internal/domain"
)

// ResolveCredential decides which key authenticates a chat-creation call.
//
//	privacyRequested=false            -> system key
//	privacyRequested=true,  has token -> the user's own key
//	privacyRequested=true,  no token  -> ErrNoTokenConfigured
//
// A user who asked for a private chat is never silently handed a
// system-keyed one; the missing-token case is a hard error the caller must
// surface as a prompt to add a key.
func ResolveCredential(privacyRequested bool, userToken, systemKey string) (domain.Credential, error) {
	if !privacyRequested {
		if systemKey == "" {
			// Startup-class misconfiguration: the public path cannot work.
			return domain.Credential{}, domain.ErrNoSystemKey
		}
		return domain.Credential{Kind: domain.CredentialSystem, Token: systemKey}, nil
	}
	if userToken == "" {
		return domain.Credential{}, domain.ErrNoTokenConfigured
	}
	return domain.Credential{Kind: domain.CredentialUser, Token: userToken}, nil
}
