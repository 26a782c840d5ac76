/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

func newGCM(keyString string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(keyString)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts a string with AES-GCM and returns the hex encoded nonce and ciphertext.
func Encrypt(stringToEncrypt string, keyString string) (string, error) {
	aesGCM, err := newGCM(keyString)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nonce, nonce, []byte(stringToEncrypt), nil)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encryptedString string, keyString string) (string, error) {
	aesGCM, err := newGCM(keyString)
	if err != nil {
		return "", err
	}

	enc, err := hex.DecodeString(encryptedString)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext: %w", err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(enc) < nonceSize {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := enc[:nonceSize], enc[nonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptToken returns a copy of tok with the access and refresh tokens
// encrypted. A blank key leaves the token untouched.
func EncryptToken(tok *oauth2.Token, key string) (*oauth2.Token, error) {
	return transformToken(tok, key, Encrypt)
}

// DecryptToken reverses EncryptToken.
func DecryptToken(tok *oauth2.Token, key string) (*oauth2.Token, error) {
	return transformToken(tok, key, Decrypt)
}

func transformToken(tok *oauth2.Token, key string, fn func(string, string) (string, error)) (*oauth2.Token, error) {
	if tok == nil || key == "" {
		return tok, nil
	}
	out := *tok
	var err error
	if out.AccessToken != "" {
		if out.AccessToken, err = fn(out.AccessToken, key); err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
	}
	if out.RefreshToken != "" {
		if out.RefreshToken, err = fn(out.RefreshToken, key); err != nil {
			return nil, fmt.Errorf("refresh token: %w", err)
		}
	}
	return &out, nil
}
