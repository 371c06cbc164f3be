// Copyright 2021 FerretDB Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/searchcore/searchcore/internal/query"
	"github.com/searchcore/searchcore/internal/queryerr"
)

// requestOptions holds the command-level flag tokens (WITHSCORES,
// WITHCURSOR, and so on) scanned out of a command's argument vector before
// the remainder is handed to the plan compiler. These tokens control
// request flags and cursor configuration; they are not clause syntax the
// compiler understands.
type requestOptions struct {
	flags      query.Flags
	withCursor bool
	count      int
	maxIdle    time.Duration
}

// scanOptions extracts recognized flag tokens from args, returning the
// remaining tokens (in order) for the compiler along with the parsed
// options. Unrecognized tokens are passed through untouched.
func scanOptions(args []string, defaultMaxIdle time.Duration) ([]string, requestOptions, error) {
	opts := requestOptions{maxIdle: defaultMaxIdle}

	rest := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "WITHSCORES":
			opts.flags |= query.SendScores
		case "WITHPAYLOADS":
			opts.flags |= query.SendPayloads
		case "WITHSORTKEYS":
			opts.flags |= query.SendSortKeys
		case "NOCONTENT":
			opts.flags |= query.SendNoFields
		case "WITHCURSOR":
			opts.withCursor = true

			// WITHCURSOR takes up to two optional trailing keyword/value
			// pairs, COUNT and MAXIDLE, in either order.
			for pairs := 0; pairs < 2 && i+2 < len(args); pairs++ {
				switch strings.ToUpper(args[i+1]) {
				case "COUNT":
					n, err := strconv.Atoi(args[i+2])
					if err != nil {
						return nil, opts, queryerr.New(queryerr.CodeBadCount, err)
					}

					opts.count = n
					i += 2
				case "MAXIDLE":
					ms, err := strconv.Atoi(args[i+2])
					if err != nil {
						return nil, opts, queryerr.New(queryerr.CodeBadCount, err)
					}

					opts.maxIdle = time.Duration(ms) * time.Millisecond
					i += 2
				default:
					pairs = 2 // stop scanning; not a recognized keyword
				}
			}
		default:
			rest = append(rest, args[i])
		}
	}

	return rest, opts, nil
}
