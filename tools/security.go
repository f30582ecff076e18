// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// Hashes holds hex digests of a text.
type Hashes struct {
	Length int    `json:"length"`
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

func generateHashesTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("generate_hashes").
		Describe("Compute MD5, SHA-1 and SHA-256 digests of a text.").
		Param(ak.Param{Name: "text", Type: ak.TypeString, Required: true}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			b := []byte(args.String("text"))
			m := md5.Sum(b)
			s1 := sha1.Sum(b)
			s256 := sha256.Sum256(b)
			return Hashes{
				Length: len(b),
				MD5:    hex.EncodeToString(m[:]),
				SHA1:   hex.EncodeToString(s1[:]),
				SHA256: hex.EncodeToString(s256[:]),
			}, nil
		}).
		Build()
}

const (
	passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%^&*-_=+"
	minPassword      = 8
	maxPassword      = 128
)

func generatePasswordTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("generate_password").
		Describe("Generate a random password from letters, digits and symbols.").
		Param(ak.Param{Name: "length", Type: ak.TypeInteger, Description: "Password length, 8 to 128 (default 16)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			n := args.Int("length", 16)
			if n < minPassword || n > maxPassword {
				return nil, fail("length must be between %d and %d", minPassword, maxPassword)
			}
			out := make([]byte, n)
			limit := big.NewInt(int64(len(passwordAlphabet)))
			for i := range out {
				idx, err := rand.Int(rand.Reader, limit)
				if err != nil {
					return nil, fail("random source failed: %v", err)
				}
				out[i] = passwordAlphabet[idx.Int64()]
			}
			return map[string]any{"password": string(out), "length": n}, nil
		}).
		Build()
}
