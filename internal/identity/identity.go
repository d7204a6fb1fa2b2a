// Package identity はサービスアカウント認証情報の読み込みと
// APIトークンの発行・検証を提供する。
package identity

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceAccount はサービスアカウントJSONの内容を表す。
type ServiceAccount struct {
	// Type は認証情報の種別。service_accountでなければならない。
	Type string `json:"type"`
	// ProjectID はプロジェクトの一意識別子。トークンのaudienceに使う。
	ProjectID string `json:"project_id"`
	// ClientEmail はサービスアカウントのメールアドレス。issuerに使う。
	ClientEmail string `json:"client_email"`
	// PrivateKey はRS256署名用のRSA秘密鍵（PEM形式）。
	PrivateKey string `json:"private_key"`
}

// Service はトークンの発行と検証を行う。
type Service struct {
	account    ServiceAccount
	signKey    *rsa.PrivateKey
	verifyKey  *rsa.PublicKey
	expiration time.Duration
}

// Claims はAPIトークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// Load は認証情報ファイルを読み込んでServiceを生成する。
// ファイルの欠落や内容の不備は起動失敗として扱う。
func Load(path string) (*Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("認証情報ファイルの読み込みに失敗しました: %w", err)
	}
	return New(data)
}

// New はサービスアカウントJSONからServiceを生成する。
func New(data []byte) (*Service, error) {
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("サービスアカウントJSONの解析に失敗しました: %w", err)
	}
	if account.Type != "service_account" {
		return nil, fmt.Errorf("認証情報の種別が不正です: %q", account.Type)
	}
	if account.ProjectID == "" {
		return nil, fmt.Errorf("project_idが設定されていません")
	}
	if account.ClientEmail == "" {
		return nil, fmt.Errorf("client_emailが設定されていません")
	}

	signKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("RSA秘密鍵の解析に失敗しました: %w", err)
	}

	return &Service{
		account:    account,
		signKey:    signKey,
		verifyKey:  &signKey.PublicKey,
		expiration: 24 * time.Hour,
	}, nil
}

// ProjectID はサービスアカウントのプロジェクトIDを返す。
func (s *Service) ProjectID() string {
	return s.account.ProjectID
}

// VerifyKey はトークン検証用のRSA公開鍵を返す。
func (s *Service) VerifyKey() *rsa.PublicKey {
	return s.verifyKey
}

// Mint はユーザー情報からRS256署名付きのAPIトークンを発行する。
func (s *Service) Mint(userID, email string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.account.ClientEmail,
			Audience:  jwt.ClaimStrings{s.account.ProjectID},
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.signKey)
	if err != nil {
		return "", fmt.Errorf("APIトークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// Verify はAPIトークンを検証してクレームを返す。
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.verifyKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(s.account.ProjectID),
	)
	if err != nil {
		return nil, fmt.Errorf("APIトークンの検証に失敗しました: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("APIトークンが無効です")
	}
	return claims, nil
}
