package trail

import (
	"reflect"
	"sync"
	"testing"
)

func TestRecord_EvictsOldestAtCapacity(t *testing.T) {
	tr := New(0)
	for i := 1; i <= 15; i++ {
		tr.RecordBotMessage(7, i)
		tr.RecordUserCommand(7, 100+i)
		bot, cmds := tr.Snapshot(7)
		if len(bot) > DefaultCapacity || len(cmds) > DefaultCapacity {
			t.Fatalf("cap exceeded after %d inserts: bot=%d cmds=%d", i, len(bot), len(cmds))
		}
	}
	bot, cmds := tr.Snapshot(7)
	if want := []int{6, 7, 8, 9, 10, 11, 12, 13, 14, 15}; !reflect.DeepEqual(bot, want) {
		t.Fatalf("bot = %v, want %v", bot, want)
	}
	if cmds[0] != 106 || cmds[len(cmds)-1] != 115 {
		t.Fatalf("cmds = %v", cmds)
	}
}

func TestDrainAndReset(t *testing.T) {
	tr := New(10)
	tr.RecordBotMessage(1, 10)
	tr.RecordBotMessage(1, 11)
	tr.RecordUserCommand(1, 20)
	tr.RecordUserCommand(1, 21)
	tr.RecordUserCommand(1, 22)

	bot, stale := tr.DrainAndReset(1)
	if !reflect.DeepEqual(bot, []int{10, 11}) || !reflect.DeepEqual(stale, []int{20, 21}) {
		t.Fatalf("drain = %v / %v", bot, stale)
	}
	gotBot, gotCmds := tr.Snapshot(1)
	if len(gotBot) != 0 || !reflect.DeepEqual(gotCmds, []int{22}) {
		t.Fatalf("after drain: bot=%v cmds=%v", gotBot, gotCmds)
	}

	// Nothing more to drain; the single newest command stays.
	bot, stale = tr.DrainAndReset(1)
	if bot != nil || stale != nil {
		t.Fatalf("second drain = %v / %v", bot, stale)
	}
	if _, cmds := tr.Snapshot(1); !reflect.DeepEqual(cmds, []int{22}) {
		t.Fatalf("newest command lost: %v", cmds)
	}
}

func TestDrainAndReset_ReturnedSlicesAreCopies(t *testing.T) {
	tr := New(3)
	tr.RecordBotMessage(1, 1)
	bot, _ := tr.DrainAndReset(1)
	tr.RecordBotMessage(1, 99)
	if bot[0] != 1 {
		t.Fatalf("drained slice aliased internal storage: %v", bot)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	tr := New(10)
	tr.RecordBotMessage(1, 1)
	tr.RecordBotMessage(2, 2)
	bot, _ := tr.DrainAndReset(1)
	if !reflect.DeepEqual(bot, []int{1}) {
		t.Fatalf("user 1 drain = %v", bot)
	}
	if b, _ := tr.Snapshot(2); !reflect.DeepEqual(b, []int{2}) {
		t.Fatalf("user 2 touched: %v", b)
	}
	if tr.Users() != 2 {
		t.Fatalf("Users = %d", tr.Users())
	}
}

func TestConcurrentRecordAndDrainKeepBounds(t *testing.T) {
	tr := New(10)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				tr.RecordBotMessage(5, g*1000+i)
				tr.RecordUserCommand(5, g*1000+i)
				if i%17 == 0 {
					tr.DrainAndReset(5)
				}
			}
		}(g)
	}
	wg.Wait()
	bot, cmds := tr.Snapshot(5)
	if len(bot) > 10 || len(cmds) > 10 {
		t.Fatalf("bounds violated: bot=%d cmds=%d", len(bot), len(cmds))
	}
}
