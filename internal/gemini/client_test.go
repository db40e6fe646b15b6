package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// validBody は形状検証を通過するレスポンス本文を返す。
func validBody(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestClient_Generate_Success(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(validBody("generated advice")))
	}))
	defer server.Close()

	c := NewClient(server.Client(), testLogger(), server.URL+"/v1beta/models/gemini-pro:generateContent", "test-key", 5*time.Second)

	text, aerr := c.Generate(context.Background(), "analyze this profile")
	if aerr != nil {
		t.Fatalf("予期しないエラー: %v", aerr)
	}
	if text != "generated advice" {
		t.Errorf("text = %q, want %q", text, "generated advice")
	}
	if gotPath != "/v1beta/models/gemini-pro:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("APIキーがクエリパラメータに含まれない: %q", gotKey)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	// リクエスト本文の形状を確認する
	var req generateRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("リクエスト本文の解析に失敗: %v", err)
	}
	if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 {
		t.Fatalf("リクエスト本文の形状が不正: %s", gotBody)
	}
	if req.Contents[0].Parts[0].Text != "analyze this profile" {
		t.Errorf("prompt text = %q", req.Contents[0].Parts[0].Text)
	}
}

func TestClient_Generate_MalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "非2xxステータス",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal"}`))
			},
		},
		{
			name: "Content-TypeがJSONでない",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>maintenance</html>"))
			},
		},
		{
			name: "JSONとして解析できない本文",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte("{not json"))
			},
		},
		{
			name: "candidatesが空",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"candidates":[]}`))
			},
		},
		{
			name: "テキストパートが無い",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"candidates":[{"content":{"parts":[]}}]}`))
			},
		},
		{
			name: "テキストが空文字列",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(validBody("")))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient(server.Client(), testLogger(), server.URL, "test-key", 5*time.Second)

			_, aerr := c.Generate(context.Background(), "prompt")
			if aerr == nil {
				t.Fatal("エラーを期待したがnil")
			}
			if aerr.Kind != FailureMalformed {
				t.Errorf("Kind = %s, want %s", aerr.Kind, FailureMalformed)
			}
		})
	}
}

func TestClient_Generate_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close() // 接続先を落としてトランスポート失敗を起こす

	c := NewClient(&http.Client{}, testLogger(), url, "test-key", 5*time.Second)

	_, aerr := c.Generate(context.Background(), "prompt")
	if aerr == nil {
		t.Fatal("エラーを期待したがnil")
	}
	if aerr.Kind != FailureTransport {
		t.Errorf("Kind = %s, want %s", aerr.Kind, FailureTransport)
	}
}

func TestClient_Generate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(validBody("too late")))
	}))
	defer server.Close()

	c := NewClient(server.Client(), testLogger(), server.URL, "test-key", 20*time.Millisecond)

	_, aerr := c.Generate(context.Background(), "prompt")
	if aerr == nil {
		t.Fatal("エラーを期待したがnil")
	}
	if aerr.Kind != FailureTimeout {
		t.Errorf("Kind = %s, want %s", aerr.Kind, FailureTimeout)
	}
}

func TestClient_Generate_MissingKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := NewClient(server.Client(), testLogger(), server.URL, "", 5*time.Second)

	_, aerr := c.Generate(context.Background(), "prompt")
	if aerr == nil {
		t.Fatal("エラーを期待したがnil")
	}
	if aerr.Kind != FailureConfiguration {
		t.Errorf("Kind = %s, want %s", aerr.Kind, FailureConfiguration)
	}
	if called {
		t.Error("認証情報未設定でもネットワーク試行が発生した")
	}
}
