package harness

import (
	"strconv"

	"github.com/pkg/errors"
)

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// hasFlag は args に flags のいずれかが含まれるかを返す
func hasFlag(args, flags []string) bool {
	for _, a := range args {
		if contains(flags, a) {
			return true
		}
	}
	return false
}

// portIndex は最初のポートフラグの値の位置を返す（無ければ -1）
// 値が続かない末尾のフラグは対象外
func portIndex(args, flags []string) int {
	for j := 0; j < len(args)-1; j++ {
		if contains(flags, args[j]) {
			return j + 1
		}
	}
	return -1
}

// rotation は書き換えたポートの情報
type rotation struct {
	index   int
	oldPort int
	newPort int
}

// argsForIteration は base をコピーし、iteration > 0 ならポートを base+iteration に置き換える
// base 自体は変更しない
func argsForIteration(base, portFlags []string, iteration int) ([]string, *rotation, error) {
	args := append([]string(nil), base...)
	if iteration == 0 {
		return args, nil, nil
	}

	idx := portIndex(base, portFlags)
	if idx < 0 {
		return args, nil, nil
	}

	port, err := strconv.Atoi(base[idx])
	if err != nil {
		return args, nil, errors.Wrapf(err, "port value %q", base[idx])
	}

	rot := &rotation{
		index:   idx,
		oldPort: port + iteration - 1,
		newPort: port + iteration,
	}
	args[idx] = strconv.Itoa(rot.newPort)
	return args, rot, nil
}
