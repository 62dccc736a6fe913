package command

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCommand   = errors.New("コマンドが空です")
	ErrChargeTooShort = errors.New("溜めコマンドには3つ以上のキーが必要です")
	ErrUnknownKey     = errors.New("許可されていないキーです")
	ErrNoValidKeys    = errors.New("有効なキーがありません")
	ErrUnparseable    = errors.New("解釈できないコマンドです")
)

// ParseError はコマンド文字列のコンパイル失敗を表します
type ParseError struct {
	Text  string
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("コマンド %q: %v (%q)", e.Text, e.Err, e.Token)
	}
	return fmt.Sprintf("コマンド %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const chargePrefix = "++"

// Parse はコマンド文字列をコンパイルします。
// 同時押し・順番入力では不正なトークンを読み捨て、その一覧を dropped として返します。
// 溜め系は厳格で、不正なトークンが1つでもあればエラーになります。
func Parse(text string) (Command, []string, error) {
	src := strings.ToLower(strings.TrimSpace(text))
	if src == "" {
		return nil, nil, &ParseError{Text: text, Err: ErrEmptyCommand}
	}

	switch {
	case strings.HasPrefix(src, chargePrefix):
		cmd, err := parseCharge(text, strings.TrimPrefix(src, chargePrefix))
		return cmd, nil, err

	case strings.Contains(src, "+"):
		keys, dropped := splitLenient(src, "+")
		if len(keys) == 0 {
			return nil, dropped, &ParseError{Text: text, Err: ErrNoValidKeys}
		}
		return Simultaneous{Keys: keys}, dropped, nil

	case strings.Contains(src, ","):
		keys, dropped := splitLenient(src, ",")
		if len(keys) == 0 {
			return nil, dropped, &ParseError{Text: text, Err: ErrNoValidKeys}
		}
		return Sequential{Keys: keys}, dropped, nil
	}

	if len(src) > 1 && strings.Count(src, src[:1]) == len(src) {
		if k, ok := ParseKey(src[:1]); ok {
			return RapidRepeat{Key: k, Count: len(src)}, nil, nil
		}
	}

	if k, ok := ParseKey(src); ok {
		return Single{Key: k}, nil, nil
	}

	return nil, nil, &ParseError{Text: text, Err: ErrUnparseable}
}

func parseCharge(text, body string) (Command, error) {
	var keys []Key
	var invalid string
	for _, token := range strings.Split(body, ",") {
		token = strings.TrimSpace(token)
		k, ok := ParseKey(token)
		if !ok {
			if invalid == "" {
				invalid = token
			}
			continue
		}
		keys = append(keys, k)
	}

	if len(keys) < 3 {
		return nil, &ParseError{Text: text, Err: ErrChargeTooShort}
	}
	if invalid != "" {
		return nil, &ParseError{Text: text, Token: invalid, Err: ErrUnknownKey}
	}

	if len(keys) == 3 {
		return Charge{
			ChargeKey:    keys[0],
			DirectionKey: keys[1],
			AttackKeys:   append([]Key(nil), keys[2:]...),
		}, nil
	}
	return HalfCircleCharge{
		ChargeKey:     keys[0],
		DirectionKeys: append([]Key(nil), keys[1:len(keys)-1]...),
		AttackKey:     keys[len(keys)-1],
	}, nil
}

func splitLenient(src, sep string) ([]Key, []string) {
	var keys []Key
	var dropped []string
	for _, token := range strings.Split(src, sep) {
		token = strings.TrimSpace(token)
		if k, ok := ParseKey(token); ok {
			keys = append(keys, k)
			continue
		}
		dropped = append(dropped, token)
	}
	return keys, dropped
}
