package dotenv

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []RawVar
		wantErr bool
	}{
		{
			name:  "simple",
			input: "FOO=bar\nBAZ=qux\n",
			want: []RawVar{
				{Key: "FOO", RawValue: "bar", Line: 1},
				{Key: "BAZ", RawValue: "qux", Line: 2},
			},
		},
		{
			name:  "comments and blank lines ignored",
			input: "# a comment\n\nFOO=bar\n   # indented comment\n",
			want:  []RawVar{{Key: "FOO", RawValue: "bar", Line: 3}},
		},
		{
			name:  "export prefix stripped",
			input: "export FOO=bar\n",
			want:  []RawVar{{Key: "FOO", RawValue: "bar", Line: 1}},
		},
		{
			name:  "quoted value preserved byte-exact",
			input: `FOO="hello world"` + "\n",
			want:  []RawVar{{Key: "FOO", RawValue: `"hello world"`, Line: 1}},
		},
		{
			name:  "inline comment stripped outside quotes",
			input: "FOO=bar # trailing comment\n",
			want:  []RawVar{{Key: "FOO", RawValue: "bar", Line: 1}},
		},
		{
			name:  "hash inside quotes is not a comment",
			input: `FOO="a # b"` + "\n",
			want:  []RawVar{{Key: "FOO", RawValue: `"a # b"`, Line: 1}},
		},
		{
			name:  "duplicate keys both retained (collapsing is Snapshot's job)",
			input: "FOO=1\nFOO=2\n",
			want: []RawVar{
				{Key: "FOO", RawValue: "1", Line: 1},
				{Key: "FOO", RawValue: "2", Line: 2},
			},
		},
		{
			name:    "missing equals is an error",
			input:   "NOTANASSIGNMENT\n",
			wantErr: true,
		},
		{
			name:    "invalid key is an error",
			input:   "1FOO=bar\n",
			wantErr: true,
		},
		{
			name:    "unterminated quote is an error",
			input:   `FOO="unterminated` + "\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse([]byte("FOO=bar\nBADLINE\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
}
