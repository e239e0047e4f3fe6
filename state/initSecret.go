package state

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// InitSecret loads the RSA public key used to verify access tokens.
// Tokens are issued elsewhere, so no private key is needed here.
func InitSecret(publicKeyPath string) (*rsa.PublicKey, error) {
	pubKeyBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, err
	}

	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	log.Info().Msg("JWT public key initialized successfully")
	return pubKey, nil
}
