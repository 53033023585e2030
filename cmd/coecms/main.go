/*
Copyright © 2018 the coecms-util authors.
This file is part of coecms-util.

coecms-util is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

coecms-util is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with coecms-util.  If not, see <http://www.gnu.org/licenses/>.*/

// Command coecms is a command-line interface for preparing coupled
// climate model input files.
package main

import (
	"fmt"
	"os"

	"github.com/coecms/coecms-util/coecmsutil"
)

func main() {
	if err := coecmsutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
