/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package upgrade

import (
	"context"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/pgupgrade/container"
)

// fakeRuntime emulates the helper and upgrade containers against an
// in-memory view of the mounted directory, keyed by in-container path.
type fakeRuntime struct {
	files map[string]string
	// calls logs every container run and stack stop, in order.
	calls []string
	specs []container.Spec

	// err is returned by runs whose first word (or image) equals failOn.
	failOn string
	err    error
}

func newFakeRuntime(files map[string]string) *fakeRuntime {
	if files == nil {
		files = map[string]string{}
	}
	return &fakeRuntime{files: files}
}

func (r *fakeRuntime) Close() error { return nil }

func (r *fakeRuntime) Run(ctx context.Context, spec container.Spec) (*container.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.specs = append(r.specs, spec)
	if spec.Image != container.DefaultHelperImage {
		r.calls = append(r.calls, "image "+spec.Image)
		if r.failOn == "image" {
			return &container.Result{ExitCode: 1, Stderr: []byte("initdb failed")},
				&container.ExitError{Image: spec.Image, Code: 1, Stderr: "initdb failed"}
		}
		r.files["/var/lib/postgresql/12/data/PG_VERSION"] = "12"
		r.files["/var/lib/postgresql/12/data/pg_hba.conf"] = "default"
		return &container.Result{Stdout: []byte("Upgrade Complete\n")}, nil
	}

	words, err := shellquote.Split(spec.Cmd[len(spec.Cmd)-1])
	if err != nil {
		return nil, err
	}
	r.calls = append(r.calls, strings.Join(words, " "))
	if words[0] == r.failOn {
		if r.err != nil {
			return nil, r.err
		}
		return &container.Result{ExitCode: 2}, &container.ExitError{Image: spec.Image, Code: 2}
	}

	fail := func() (*container.Result, error) {
		return &container.Result{ExitCode: 1}, &container.ExitError{Image: spec.Image, Code: 1}
	}
	switch words[0] {
	case "test":
		if _, ok := r.files[words[2]]; !ok {
			return fail()
		}
		return &container.Result{Stdout: []byte("exists\n")}, nil
	case "cat":
		content, ok := r.files[words[1]]
		if !ok {
			return fail()
		}
		return &container.Result{Stdout: []byte(content + "\n")}, nil
	case "mkdir":
		return &container.Result{}, nil
	case "cp":
		content, ok := r.files[words[1]]
		if !ok {
			return fail()
		}
		r.files[words[2]] = content
		return &container.Result{}, nil
	case "rm":
		for path := range r.files {
			if strings.HasPrefix(path, words[2]+"/") {
				delete(r.files, path)
			}
		}
		return &container.Result{}, nil
	}
	return nil, errors.Errorf("unexpected command %q", words)
}

type fakeStack struct {
	rt  *fakeRuntime
	err error
}

func (s *fakeStack) Stop(ctx context.Context) error {
	s.rt.calls = append(s.rt.calls, "stop")
	return s.err
}

func (s *fakeStack) stopped() int {
	n := 0
	for _, c := range s.rt.calls {
		if c == "stop" {
			n++
		}
	}
	return n
}

func legacyFiles(version string) map[string]string {
	return map[string]string{
		"/var/lib/postgresql/10/data/PG_VERSION":  version,
		"/var/lib/postgresql/10/data/pg_hba.conf": "host all all all md5",
		"/var/lib/postgresql/10/data/base/1/112":  fmt.Sprintf("page of %s", version),
	}
}
