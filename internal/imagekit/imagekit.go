package imagekit

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const tokenTTL = 30 * time.Minute

var ErrNotConfigured = errors.New("imagekit private key is not configured")

// AuthParams are the client-side upload authentication parameters.
type AuthParams struct {
	Token       string `json:"token"`
	Expire      int64  `json:"expire"`
	Signature   string `json:"signature"`
	PublicKey   string `json:"publicKey"`
	URLEndpoint string `json:"urlEndpoint"`
}

type Signer struct {
	publicKey   string
	privateKey  string
	urlEndpoint string
	now         func() time.Time
	newToken    func() string
}

func NewSigner(publicKey, privateKey, urlEndpoint string) *Signer {
	return &Signer{
		publicKey:   publicKey,
		privateKey:  privateKey,
		urlEndpoint: urlEndpoint,
		now:         time.Now,
		newToken:    func() string { return uuid.NewString() },
	}
}

func (s *Signer) AuthParams() (*AuthParams, error) {
	if s.privateKey == "" {
		return nil, ErrNotConfigured
	}

	token := s.newToken()
	expire := s.now().Add(tokenTTL).Unix()
	return &AuthParams{
		Token:       token,
		Expire:      expire,
		Signature:   Sign(s.privateKey, token, expire),
		PublicKey:   s.publicKey,
		URLEndpoint: s.urlEndpoint,
	}, nil
}

// Sign returns hex(HMAC-SHA1(privateKey, token+expire)).
func Sign(privateKey, token string, expire int64) string {
	mac := hmac.New(sha1.New, []byte(privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
