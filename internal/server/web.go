package server

import (
	"strconv"
	"strings"
	"time"
)

// indexHTML returns the remote-control page; holdDelay is the long-press threshold in the browser
func indexHTML(holdDelay time.Duration) string {
	return strings.Replace(indexTemplate, "{{HOLD_MS}}", strconv.FormatInt(holdDelay.Milliseconds(), 10), 1)
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>SoundCheck</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
    <style>
        #hold { touch-action: none; user-select: none; }
        #hold.recording { background: #c62828; border-color: #c62828; }
        pre { white-space: pre; overflow-x: auto; }
    </style>
</head>
<body>
<main class="container">
    <h1>SoundCheck</h1>
    <div class="grid">
        <button id="hold">Hold to Record</button>
        <form id="select-form">
            <input type="file" id="file" name="file" accept="audio/*">
        </form>
    </div>
    <div id="controls" hidden>
        <p>File: <strong id="file-name"></strong></p>
        <div class="grid">
            <button id="play" class="secondary">Play</button>
            <button id="process">Process</button>
        </div>
    </div>
    <p id="message"></p>
    <pre id="view"></pre>
</main>
<script>
const HOLD_MS = {{HOLD_MS}};
const hold = document.getElementById('hold');
const message = document.getElementById('message');
let timer = null, longPress = false;

async function post(path, body) {
    const res = await fetch(path, { method: 'POST', body });
    const data = await res.json();
    message.textContent = data.success ? (data.message || '') : ('Error: ' + data.error);
    return data;
}

hold.addEventListener('pointerdown', () => {
    longPress = false;
    timer = setTimeout(async () => {
        longPress = true;
        await post('/record/start');
    }, HOLD_MS);
});

['pointerup', 'pointerleave', 'pointercancel'].forEach(ev => hold.addEventListener(ev, async () => {
    clearTimeout(timer);
    if (longPress) {
        longPress = false;
        await post('/record/stop');
    }
}));

document.getElementById('file').addEventListener('change', async (ev) => {
    const form = new FormData();
    if (ev.target.files.length > 0) {
        form.append('file', ev.target.files[0]);
    }
    await post('/select', form);
    ev.target.value = '';
});

document.getElementById('play').addEventListener('click', () => post('/play'));
document.getElementById('process').addEventListener('click', () => post('/process'));

function render(status) {
    hold.classList.toggle('recording', status.recording);
    const controls = document.getElementById('controls');
    controls.hidden = !status.selection;
    if (status.selection) {
        document.getElementById('file-name').textContent = status.selection.file_name;
    }
    const proc = document.getElementById('process');
    proc.textContent = status.processing ? 'Processing...' : 'Process';
    proc.setAttribute('aria-busy', status.processing);
    document.getElementById('view').textContent = status.view;
}

function connect() {
    const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
    ws.onmessage = ev => render(JSON.parse(ev.data));
    ws.onclose = () => setTimeout(connect, 2000);
}
connect();
</script>
</body>
</html>`
