package web_server

// indexHTML 内置操作页面：填写文稿发起运行，实时查看阶段日志
const indexHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <title>悬疑解说视频工作台</title>
    <style>
        body { font-family: -apple-system, "PingFang SC", "Microsoft YaHei", sans-serif; margin: 0; background: #12121a; color: #ddd; }
        .wrap { max-width: 960px; margin: 0 auto; padding: 24px; }
        h1 { font-size: 20px; color: #fff; }
        label { display: block; margin: 12px 0 4px; font-size: 13px; color: #aaa; }
        input, textarea { width: 100%; box-sizing: border-box; background: #1d1d28; color: #eee; border: 1px solid #333; border-radius: 4px; padding: 8px; font-size: 14px; }
        textarea { min-height: 120px; resize: vertical; }
        button { margin-top: 16px; background: #4a6cf7; color: #fff; border: none; border-radius: 4px; padding: 10px 24px; font-size: 14px; cursor: pointer; }
        button:disabled { background: #555; cursor: wait; }
        #log { margin-top: 24px; background: #0c0c12; border: 1px solid #2a2a38; border-radius: 4px; padding: 12px; height: 280px; overflow-y: auto; font-family: monospace; font-size: 12px; }
        .log-info { color: #9ab; }
        .log-success { color: #6c6; }
        .log-degraded { color: #da3; }
        .log-error { color: #e66; }
        #result a { color: #7af; }
    </style>
</head>
<body>
<div class="wrap">
    <h1>悬疑解说视频工作台</h1>
    <label>标题</label>
    <input id="title" placeholder="本期视频标题">
    <label>解说文稿（与音频至少填一个）</label>
    <textarea id="script" placeholder="粘贴解说文稿..."></textarea>
    <label>解说音频路径（input目录下的文件名或绝对路径）</label>
    <input id="audio" placeholder="voice.mp3">
    <label>画面风格</label>
    <input id="style" placeholder="写实电影感，昏暗悬疑色调">
    <label>主持人名称 / 形象描述</label>
    <input id="hostName" placeholder="老K">
    <input id="hostAppearance" placeholder="中年男子，黑色风衣" style="margin-top:6px">
    <button id="run" onclick="startRun()">开始生成</button>
    <div id="result" style="margin-top:16px"></div>
    <div id="log"></div>
</div>
<script>
const logBox = document.getElementById('log');
function appendLog(stage, message, type) {
    const line = document.createElement('div');
    line.className = 'log-' + (type || 'info');
    line.textContent = '[' + stage + '] ' + message;
    logBox.appendChild(line);
    logBox.scrollTop = logBox.scrollHeight;
}
function connectWS() {
    const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    const ws = new WebSocket(proto + location.host + '/ws');
    ws.onmessage = (ev) => {
        const msg = JSON.parse(ev.data);
        appendLog(msg.stage, msg.message, msg.type);
    };
    ws.onclose = () => setTimeout(connectWS, 3000);
}
connectWS();
async function startRun() {
    const btn = document.getElementById('run');
    btn.disabled = true;
    document.getElementById('result').textContent = '';
    try {
        const resp = await fetch('/api/runs', {
            method: 'POST',
            headers: {'Content-Type': 'application/json'},
            body: JSON.stringify({
                title: document.getElementById('title').value,
                script: document.getElementById('script').value,
                audio_path: document.getElementById('audio').value,
                style: document.getElementById('style').value,
                host_name: document.getElementById('hostName').value,
                host_appearance: document.getElementById('hostAppearance').value
            })
        });
        const data = await resp.json();
        if (!resp.ok) {
            appendLog('错误', data.error, 'error');
        } else {
            const rel = data.draft_path.replace(/^output[\\/\\\\]/, '');
            document.getElementById('result').innerHTML =
                '草稿已生成：<a href="/files/output/' + rel + '">' + data.draft_path + '</a>' +
                '（分段 ' + data.segment_count + ' / 人物 ' + data.cast_count + ' / 分镜 ' + data.shot_count + '）';
        }
    } catch (e) {
        appendLog('错误', String(e), 'error');
    } finally {
        btn.disabled = false;
    }
}
</script>
</body>
</html>`
