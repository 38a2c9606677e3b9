package game

import (
	"encoding/json"
	"math/rand/v2"

	"github.com/google/uuid"
)

// 会话码字符集：去掉了容易混淆的 0/O/1/I
const sessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("Failed to generate UUID: " + err.Error())
	}

	return id.String()
}

// GenShortID 生成 8 位短 ID，用于玩家标识
func GenShortID() string {
	id := GenID()
	return id[len(id)-8:]
}

// GenSessionCode 生成 6 位可口头分享的会话码
func GenSessionCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = sessionCodeAlphabet[rand.IntN(len(sessionCodeAlphabet))]
	}

	return string(code)
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("Failed to marshal: " + err.Error())
	}

	return data
}
