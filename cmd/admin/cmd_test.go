package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type createdUser struct {
	id, email, password string
}

type fakeUsers struct {
	created []createdUser
	err     error
}

func (f *fakeUsers) CreateUser(_ context.Context, id, email, password string) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, createdUser{id: id, email: email, password: password})
	return nil
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func Test_commandLine_addUser(t *testing.T) {
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser"}, wantErr: errHelp},
		{name: "bad email", args: []string{"adduser", "-email", "not-an-email"}, pwd: "rahasia-guru", wantErr: errHelp},
		{name: "email but no password", args: []string{"adduser", "-email", "guru@smp2ayah.sch.id"}, wantErr: errHelp},
		{name: "short password", args: []string{"adduser", "-email", "guru@smp2ayah.sch.id"}, pwd: "123", wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-username", "guru"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-email", " Guru@SMP2Ayah.sch.id "}, pwd: "rahasia-guru"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUsers{}
			cli := &commandLine{users: users, validate: validator.New(), out: &bytes.Buffer{}}
			readPasswordFunc = func(int) ([]byte, error) {
				return []byte(tt.pwd), nil
			}

			err := cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Empty(t, users.created)
				return
			}
			require.NoError(t, err)
			require.Len(t, users.created, 1)
			require.Equal(t, "guru@smp2ayah.sch.id", users.created[0].email)
			require.Equal(t, tt.pwd, users.created[0].password)
			require.NotEmpty(t, users.created[0].id)
		})
	}
}

func Test_commandLine_addUserFailures(t *testing.T) {
	boom := errors.New("db down")
	cli := &commandLine{users: &fakeUsers{err: boom}, validate: validator.New(), out: &bytes.Buffer{}}

	readPasswordFunc = func(int) ([]byte, error) { return nil, errors.New("no tty") }
	err := cli.run(context.Background(), []string{"admin", "adduser", "-email", "guru@smp2ayah.sch.id"})
	require.EqualError(t, err, "no tty")

	readPasswordFunc = func(int) ([]byte, error) { return []byte("rahasia-guru"), nil }
	err = cli.run(context.Background(), []string{"admin", "adduser", "-email", "guru@smp2ayah.sch.id"})
	require.ErrorIs(t, err, boom)
}
