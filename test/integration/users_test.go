// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Thingful Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

type apiResponse struct {
	status  int
	header  http.Header
	body    map[string]any
	rawBody string
}

func call(method, path, body, userPass string) apiResponse {
	GinkgoHelper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userPass != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(userPass)))
	}

	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	out := apiResponse{status: resp.StatusCode, header: resp.Header, rawBody: string(raw)}
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &out.body)).To(Succeed())
	}
	return out
}

const aliceBody = `{"full_name":"Alice Liddell","user_name":"alice","password":"Secret1!","nickname":"al"}`

var _ = Describe("User accounts", func() {
	BeforeEach(truncateUsers)

	Describe("registration", func() {
		It("stores a bcrypt digest, never the password", func() {
			resp := call(http.MethodPost, "/api/users", aliceBody, "")
			Expect(resp.status).To(Equal(http.StatusCreated))
			Expect(resp.body).To(HaveKeyWithValue("user_name", "alice"))
			Expect(resp.body).To(HaveKeyWithValue("nickname", "al"))
			Expect(resp.body).NotTo(HaveKey("password"))
			Expect(resp.header.Get("Location")).To(Equal("/api/users/" + resp.body["id"].(string)))

			var digest string
			err := env.pool.QueryRow(context.Background(),
				"SELECT password FROM thingful_users WHERE user_name = $1", "alice").Scan(&digest)
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(HavePrefix("$2"))
			Expect(digest).NotTo(ContainSubstring("Secret1!"))
		})

		It("rejects a taken username", func() {
			Expect(call(http.MethodPost, "/api/users", aliceBody, "").status).To(Equal(http.StatusCreated))

			resp := call(http.MethodPost, "/api/users", aliceBody, "")
			Expect(resp.status).To(Equal(http.StatusBadRequest))
			Expect(resp.body).To(HaveKeyWithValue("error", "Username has already been taken"))
		})

		It("lets exactly one of many concurrent registrations win", func() {
			const n = 10
			statuses := make([]int, n)
			var wg sync.WaitGroup
			for i := range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					statuses[i] = call(http.MethodPost, "/api/users", aliceBody, "").status
				}()
			}
			wg.Wait()

			Expect(statuses).To(ContainElement(http.StatusCreated))
			created := 0
			for _, s := range statuses {
				if s == http.StatusCreated {
					created++
				} else {
					Expect(s).To(Equal(http.StatusBadRequest))
				}
			}
			Expect(created).To(Equal(1))

			var count int
			Expect(env.pool.QueryRow(context.Background(),
				"SELECT count(*) FROM thingful_users").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))
		})

		It("reports the missing field by name", func() {
			resp := call(http.MethodPost, "/api/users", `{"full_name":"A","user_name":"a"}`, "")
			Expect(resp.status).To(Equal(http.StatusBadRequest))
			Expect(resp.body).To(HaveKeyWithValue("error", "Missing password in request body"))
		})

		It("rejects a NUL in user_name before it reaches the database", func() {
			resp := call(http.MethodPost, "/api/users",
				`{"full_name":"A","user_name":"a\u0000b","password":"Secret1!"}`, "")
			Expect(resp.status).To(Equal(http.StatusBadRequest))
			Expect(resp.body).To(HaveKeyWithValue("error", "Invalid characters in user_name"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			Expect(call(http.MethodPost, "/api/users", aliceBody, "").status).To(Equal(http.StatusCreated))
		})

		It("admits the right password", func() {
			resp := call(http.MethodGet, "/api/users/me", "", "alice:Secret1!")
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.body).To(HaveKeyWithValue("full_name", "Alice Liddell"))
		})

		DescribeTable("rejections",
			func(userPass, want string) {
				resp := call(http.MethodGet, "/api/users/me", "", userPass)
				Expect(resp.status).To(Equal(http.StatusUnauthorized))
				Expect(resp.body).To(HaveKeyWithValue("error", want))
				Expect(resp.header.Get("WWW-Authenticate")).To(ContainSubstring(`realm="thingful-it"`))
			},
			Entry("no credentials", "", "Missing basic token"),
			Entry("wrong password", "alice:Secret2!", "Unauthorized request"),
			Entry("unknown user", "mallory:Secret1!", "Unauthorized request"),
			Entry("username case differs", "ALICE:Secret1!", "Unauthorized request"),
			Entry("NUL in username", "ali\x00ce:Secret1!", "Unauthorized request"),
			Entry("invalid UTF-8 username", "\xffalice:Secret1!", "Unauthorized request"),
		)

		It("resolves the Location of a new account", func() {
			created := call(http.MethodPost, "/api/users",
				`{"full_name":"Bob","user_name":"bob","password":"Secret1!"}`, "")
			Expect(created.status).To(Equal(http.StatusCreated))

			resp := call(http.MethodGet, created.header.Get("Location"), "", "alice:Secret1!")
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.body).To(HaveKeyWithValue("user_name", "bob"))
			Expect(resp.body).To(HaveKeyWithValue("nickname", BeNil()))
		})
	})
})
