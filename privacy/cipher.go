package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/rushteam/markovkit/core"
)

const (
	// cipherKeyMaterial 是密钥派生的固定输入。
	// 已知弱点：所有部署实例共享同一把密钥，只能满足"同一明文可解密
	// 还原"的行为契约，不提供实例间的机密性。密钥管理加固不在本层
	// 范围内。
	cipherKeyMaterial = "markovkit-recommender"

	cipherKeySalt = "markovkit-behavior-encryption"
	cipherKeyInfo = "behavior-field-encryption-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

// ErrDecryptFailed 表示密文无效或校验失败
var ErrDecryptFailed = core.NewDomainError(core.ModulePrivacy, core.ErrorCodeInvalidInput,
	"privacy: decrypt failed: invalid ciphertext or authentication tag")

// Cipher 对行为事件的字符串字段做对称加密（AES-256-GCM）。
// 密文格式：base64(nonce || ciphertext||tag)，每次加密使用随机 nonce。
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher 用固定常量经 HKDF-SHA256 派生 AES-256 密钥并构建 AEAD。
func NewCipher() (*Cipher, error) {
	key := make([]byte, aesKeySize)
	kdf := hkdf.New(sha256.New, []byte(cipherKeyMaterial), []byte(cipherKeySalt), []byte(cipherKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// EncryptString 加密一个字符串字段。
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString 是 EncryptString 的逆操作。
func (c *Cipher) DecryptString(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < gcmNonceSize {
		return "", ErrDecryptFailed
	}
	plain, err := c.aead.Open(nil, raw[:gcmNonceSize], raw[gcmNonceSize:], nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}
