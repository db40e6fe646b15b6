package prompt

import (
	"sort"
	"strings"

	"github.com/hitoshi/finman/internal/model"
)

// Build は指定テンプレートとフィールド値からプロンプトを組み立てる。
// 必須フィールドが欠落または空の場合は*model.APIError（バリデーションエラー）を返す。
// 同一の入力に対して常にバイト単位で同一のテキストを生成する。
func Build(t Template, fields map[string]string) (Prompt, error) {
	switch t {
	case TemplateChat:
		return buildChat(fields)
	case TemplateUpdateAdvice:
		return buildUpdateAdvice(fields)
	}

	spec, ok := templates[t]
	if !ok {
		return Prompt{}, model.NewInvalidParameterError("unknown template")
	}

	// 必須フィールドの検証を出力生成より先に行う
	var missing []string
	for _, f := range spec.fields {
		if f.key == "" || !f.required {
			continue
		}
		if fields[f.key] == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return Prompt{}, model.NewMissingFieldsError(missing)
	}

	var b strings.Builder
	b.WriteString(spec.preamble)
	for _, f := range spec.fields {
		// keyなしの行はセクション見出し等の固定テキスト
		if f.key == "" {
			b.WriteString(f.label)
			b.WriteString("\n")
			continue
		}
		value := fields[f.key]
		if value == "" {
			if f.omitIfEmpty {
				continue
			}
			value = f.placeholder
		}
		b.WriteString(f.label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	return Prompt{Template: t, Text: b.String()}, nil
}

// buildChat はチャットプロンプトを組み立てる。
// 会話履歴の末尾にユーザーの発言を追記する形式。messageは必須。
func buildChat(fields map[string]string) (Prompt, error) {
	message := fields["message"]
	if message == "" {
		return Prompt{}, model.NewMissingFieldsError([]string{"message"})
	}

	var b strings.Builder
	b.WriteString(fields["conversation_history"])
	b.WriteString("\nUser: ")
	b.WriteString(message)

	return Prompt{Template: TemplateChat, Text: b.String()}, nil
}

// buildUpdateAdvice はアドバイス更新プロンプトを組み立てる。
// 呼び出し側の任意キー/値をすべて含める。マップの反復順序に依存しないよう
// キーを辞書順にソートして出力する（キャッシュキーの安定性に必要）。
func buildUpdateAdvice(fields map[string]string) (Prompt, error) {
	if len(fields) == 0 {
		return Prompt{}, model.NewMissingFieldsError([]string{"latest information"})
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Please update the financial advice based on the following latest information and real-time market data:\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(fields[k])
		b.WriteString("\n")
	}

	return Prompt{Template: TemplateUpdateAdvice, Text: b.String()}, nil
}
